package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/shop"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List your orders",
	RunE:  runOrders,
}

var orderShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderShow,
}

var orderPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Place an order",
	Long: `Place an order for one or more products.

Examples:
  topia orders place --item 6f1c...:2 --pay PayPal --address "1 Main St" --city Hanoi --postal 10000 --country VN
  topia orders place --item 6f1c...:1 --coupon WELCOME10`,
	RunE: runOrderPlace,
}

var couponCmd = &cobra.Command{
	Use:   "coupon <code>",
	Short: "Check a coupon code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoupon,
}

var (
	placeItems  []string
	placeOrder  shop.PlaceOrder
	placeCoupon string
)

func init() {
	orderPlaceCmd.Flags().StringArrayVarP(&placeItems, "item", "i", nil, "Product and quantity as id:qty (repeatable)")
	orderPlaceCmd.Flags().StringVar(&placeOrder.PaymentMethod, "pay", "PayPal", "Payment method")
	orderPlaceCmd.Flags().StringVar(&placeOrder.ShippingAddress.Address, "address", "", "Street address")
	orderPlaceCmd.Flags().StringVar(&placeOrder.ShippingAddress.City, "city", "", "City")
	orderPlaceCmd.Flags().StringVar(&placeOrder.ShippingAddress.PostalCode, "postal", "", "Postal code")
	orderPlaceCmd.Flags().StringVar(&placeOrder.ShippingAddress.Country, "country", "", "Country")
	orderPlaceCmd.Flags().StringVar(&placeCoupon, "coupon", "", "Coupon code")

	ordersCmd.AddCommand(orderShowCmd)
	ordersCmd.AddCommand(orderPlaceCmd)
}

func runOrders(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/orders"); err != nil {
		return err
	}
	orders, err := a.Shop.Orders.Mine(cmd.Context())
	if err != nil {
		return friendly(err)
	}

	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders yet.")
		return nil
	}
	printOrders(out, orders)
	return nil
}

func runOrderShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/order/"+args[0]); err != nil {
		return err
	}
	o, err := a.Shop.Orders.Get(cmd.Context(), args[0])
	if err != nil {
		return friendly(err)
	}
	printOrder(cmd.OutOrStdout(), o)
	return nil
}

func runOrderPlace(cmd *cobra.Command, args []string) error {
	if len(placeItems) == 0 {
		return fmt.Errorf("at least one --item is required")
	}
	items := make([]model.OrderItem, 0, len(placeItems))
	for _, raw := range placeItems {
		it, err := parseItem(raw)
		if err != nil {
			return err
		}
		items = append(items, it)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/placeorder"); err != nil {
		return err
	}

	po := placeOrder
	po.OrderItems = items
	po.CouponCode = placeCoupon
	o, err := a.Shop.Orders.Create(cmd.Context(), po)
	if err != nil {
		return friendly(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✅ Order placed.")
	printOrder(out, o)
	return nil
}

func runCoupon(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	c, err := a.Shop.Coupons.Validate(cmd.Context(), args[0])
	if err != nil {
		return friendly(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %g%% off\n", c.Code, c.Discount)
	return nil
}

// parseItem reads "id:qty"; a bare id means one unit
func parseItem(raw string) (model.OrderItem, error) {
	id, qtyStr, found := strings.Cut(raw, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return model.OrderItem{}, fmt.Errorf("invalid item %q: missing product id", raw)
	}
	qty := 1
	if found {
		n, err := strconv.Atoi(strings.TrimSpace(qtyStr))
		if err != nil || n < 1 {
			return model.OrderItem{}, fmt.Errorf("invalid item %q: quantity must be a positive number", raw)
		}
		qty = n
	}
	return model.OrderItem{Product: id, Qty: qty}, nil
}

func printOrders(out io.Writer, orders []model.Order) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTOTAL\tSTATUS\tPAID")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.CreatedAt.Format("2006-01-02"), formatPrice(o.TotalPrice), o.Status, yesNo(o.IsPaid))
	}
	w.Flush()
}

func printOrder(out io.Writer, o *model.Order) {
	fmt.Fprintf(out, "Order %s (%s)\n", o.ID, o.Status)
	for _, it := range o.OrderItems {
		fmt.Fprintf(out, "  %d x %s @ %s\n", it.Qty, it.Name, formatPrice(it.Price))
	}
	if o.CouponCode != "" {
		fmt.Fprintf(out, "Coupon: %s\n", o.CouponCode)
	}
	fmt.Fprintf(out, "Total:  %s\n", formatPrice(o.TotalPrice))
}
