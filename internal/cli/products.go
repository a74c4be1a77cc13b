package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/shop"
	"github.com/spf13/cobra"
)

var productsCmd = &cobra.Command{
	Use:     "products",
	Aliases: []string{"catalog"},
	Short:   "Browse products",
	Long: `List products, optionally filtered.

Examples:
  topia products
  topia products --keyword shirt --sort price_asc
  topia products --category apparel --page 2`,
	RunE: runProducts,
}

var productShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
	RunE:  runProductShow,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE:  runCategories,
}

var productQuery shop.Query

func init() {
	productsCmd.Flags().StringVarP(&productQuery.Keyword, "keyword", "k", "", "Search keyword")
	productsCmd.Flags().StringVarP(&productQuery.Category, "category", "c", "", "Category slug")
	productsCmd.Flags().StringVarP(&productQuery.Sort, "sort", "s", "", "Sort: price_asc, price_desc, rating, newest")
	productsCmd.Flags().IntVarP(&productQuery.Page, "page", "p", 1, "Page number")

	productsCmd.AddCommand(productShowCmd)
	productsCmd.AddCommand(categoriesCmd)
}

func runProducts(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	path := "/products"
	if productQuery.Keyword != "" {
		path = "/search/" + productQuery.Keyword
	}
	if err := requireView(a, path); err != nil {
		return err
	}

	page, err := a.Shop.Products.List(cmd.Context(), productQuery)
	if err != nil {
		return friendly(err)
	}

	out := cmd.OutOrStdout()
	if len(page.Products) == 0 {
		fmt.Fprintln(out, "No products found.")
		return nil
	}
	printProducts(out, page.Products)
	fmt.Fprintf(out, "\nPage %d of %d (%d products)\n", page.Page, page.Pages, page.Total)
	return nil
}

func runProductShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/product/"+args[0]); err != nil {
		return err
	}
	p, err := a.Shop.Products.Get(cmd.Context(), args[0])
	if err != nil {
		return friendly(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n%s\n\n", p.Name, p.Description)
	fmt.Fprintf(out, "Price:    %s\n", formatPrice(p.Price))
	fmt.Fprintf(out, "Stock:    %s\n", stockLabel(*p))
	fmt.Fprintf(out, "Rating:   %.1f (%d reviews)\n", p.Rating, p.NumReviews)
	if p.Category != "" {
		fmt.Fprintf(out, "Category: %s\n", p.Category)
	}
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	cats, err := a.Shop.Categories.List(cmd.Context())
	if err != nil {
		return friendly(err)
	}
	for _, c := range cats {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", c.Slug, c.Name)
	}
	return nil
}

func printProducts(out io.Writer, products []model.Product) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, formatPrice(p.Price), stockLabel(p))
	}
	w.Flush()
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func stockLabel(p model.Product) string {
	if !p.InStock() {
		return "out of stock"
	}
	return fmt.Sprintf("%d", p.CountInStock)
}
