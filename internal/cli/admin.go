package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/shop"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Shop administration (admin accounts only)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all users",
	RunE:  runAdminUsers,
}

var adminProductCmd = &cobra.Command{
	Use:   "add-product",
	Short: "Create a product",
	Long: `Create a product, optionally with an image.

Examples:
  topia admin add-product --name "Canvas Tote" --price 15 --stock 20 --category accessories --image tote.jpg`,
	RunE: runAdminProduct,
}

var adminStatusCmd = &cobra.Command{
	Use:   "order-status <id> <status>",
	Short: "Change an order's status (pending, processing, shipped, delivered, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminStatus,
}

var (
	newProduct shop.NewProduct
	imagePath  string
)

func init() {
	adminProductCmd.Flags().StringVar(&newProduct.Name, "name", "", "Product name")
	adminProductCmd.Flags().StringVar(&newProduct.Description, "description", "", "Description")
	adminProductCmd.Flags().Float64Var(&newProduct.Price, "price", 0, "Price")
	adminProductCmd.Flags().IntVar(&newProduct.CountInStock, "stock", 0, "Units in stock")
	adminProductCmd.Flags().StringVar(&newProduct.Category, "category", "", "Category slug")
	adminProductCmd.Flags().StringVar(&imagePath, "image", "", "Image file to upload")
	_ = adminProductCmd.MarkFlagRequired("name")

	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminProductCmd)
	adminCmd.AddCommand(adminStatusCmd)
}

func runAdminUsers(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/admin/users"); err != nil {
		return err
	}
	users, err := a.Shop.Users.List(cmd.Context())
	if err != nil {
		return friendly(err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tADMIN")
	for _, u := range users {
		u.DeriveAdmin()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, yesNo(u.IsAdmin))
	}
	return w.Flush()
}

func runAdminProduct(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/admin/products"); err != nil {
		return err
	}

	np := newProduct
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()
		np.ImageName = filepath.Base(imagePath)
		np.Image = f
	}

	p, err := a.Shop.Products.Create(cmd.Context(), np)
	if err != nil {
		return friendly(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s (%s)\n", p.Name, p.ID)
	return nil
}

func runAdminStatus(cmd *cobra.Command, args []string) error {
	status := model.OrderStatus(args[1])
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", args[1])
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/admin/orders"); err != nil {
		return err
	}
	o, err := a.Shop.Orders.UpdateStatus(cmd.Context(), args[0], status)
	if err != nil {
		return friendly(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Order %s is now %s\n", o.ID, o.Status)
	return nil
}
