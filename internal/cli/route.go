package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/existflow/topia/internal/guard"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect view access rules",
}

var routeCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Show what the guard decides for a path with the current session",
	Long: `Evaluate the route guard for a path against the current session.

Examples:
  topia route check /profile
  topia route check /admin/orders`,
	Args: cobra.ExactArgs(1),
	RunE: runRouteCheck,
}

var routeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the route table",
	RunE:    runRouteList,
}

func init() {
	routeCmd.AddCommand(routeCheckCmd)
	routeCmd.AddCommand(routeListCmd)
}

func runRouteCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	path := args[0]
	d := a.Open(path)
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", path, d.Outcome, d.Target(path))
	return nil
}

func runRouteList(cmd *cobra.Command, args []string) error {
	table := guard.DefaultTable()
	if cfg.RoutesFile != "" {
		t, err := guard.LoadTable(cfg.RoutesFile)
		if err != nil {
			return err
		}
		table = t
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tAUTH\tADMIN")
	for _, r := range table.Routes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path, yesNo(r.AuthRequired), yesNo(r.AdminRequired))
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
