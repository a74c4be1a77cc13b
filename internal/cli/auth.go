package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/app"
	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your session",
	Long:  `Log in, log out, register, and manage your profile.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out (local only)",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE:  runWhoami,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	Long: `Show your profile, or update it with --name and/or --new-password.

Examples:
  topia auth profile
  topia auth profile --name "Jane Doe"
  topia auth profile --new-password`,
	RunE: runProfile,
}

var (
	authEmail       string
	authPassword    string
	registerName    string
	registerPhone   string
	registerLogin   bool
	profileName     string
	profilePassword bool
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(whoamiCmd)
	authCmd.AddCommand(profileCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email (prompted when empty)")
		c.Flags().StringVar(&authPassword, "password", "", "Password (prompted when empty; avoid in shared shells)")
	}
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name (prompted when empty)")
	registerCmd.Flags().StringVar(&registerPhone, "phone", "", "Phone number")
	registerCmd.Flags().BoolVar(&registerLogin, "login", false, "Log in right after registering (default from config)")

	profileCmd.Flags().StringVar(&profileName, "name", "", "New display name")
	profileCmd.Flags().BoolVar(&profilePassword, "new-password", false, "Prompt for a new password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	email := authEmail
	if email == "" {
		email = prompt(in, out, "Email: ")
	}
	password := authPassword
	if password == "" {
		password = readPassword(in, out, "Password: ")
	}

	fmt.Fprintln(out, "🔄 Logging in...")
	u, err := a.Login(cmd.Context(), session.Credentials{Email: email, Password: password})
	if err != nil {
		return friendly(err)
	}

	fmt.Fprintf(out, "✅ Logged in as %s <%s>\n", u.Name, u.Email)
	if u.IsAdmin {
		fmt.Fprintln(out, "   Admin access enabled")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	out := cmd.OutOrStdout()
	if !a.Session.State().IsAuthenticated() {
		fmt.Fprintln(out, "Not logged in.")
	}
	a.Logout()
	fmt.Fprintln(out, "✅ Logged out.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	reg := session.Registration{Name: registerName, Email: authEmail, Phone: registerPhone, Password: authPassword}
	if reg.Name == "" {
		reg.Name = prompt(in, out, "Name: ")
	}
	if reg.Email == "" {
		reg.Email = prompt(in, out, "Email: ")
	}
	if reg.Password == "" {
		reg.Password = readPassword(in, out, "Password: ")
		if confirm := readPassword(in, out, "Confirm password: "); confirm != reg.Password {
			return errors.New("passwords do not match")
		}
	}

	opts := session.RegisterOptions{AutoLogin: cfg.RegisterAutoLogin}
	if cmd.Flags().Changed("login") {
		opts.AutoLogin = registerLogin
	}

	fmt.Fprintln(out, "🔄 Creating account...")
	u, err := a.Register(cmd.Context(), reg, opts)
	if err != nil {
		return friendly(err)
	}

	if a.Session.State().IsAuthenticated() {
		fmt.Fprintf(out, "✅ Account created. Logged in as %s\n", u.Name)
	} else {
		fmt.Fprintf(out, "✅ Account created for %s. Run 'topia auth login' to sign in.\n", u.Email)
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	out := cmd.OutOrStdout()
	u := a.Session.User()
	if u == nil {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	role := "customer"
	if u.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(out, "%s <%s> (%s)\n", u.Name, u.Email, role)
	if u.Tier != "" || u.Points > 0 {
		fmt.Fprintf(out, "Loyalty: %s, %d points\n", u.Tier, u.Points)
	}
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireView(a, "/profile"); err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	patch := session.ProfilePatch{Name: profileName}
	if profilePassword {
		patch.Password = readPassword(in, out, "New password: ")
		if confirm := readPassword(in, out, "Confirm password: "); confirm != patch.Password {
			return errors.New("passwords do not match")
		}
	}

	u := a.Session.User()
	if patch != (session.ProfilePatch{}) {
		u, err = a.Session.UpdateProfile(cmd.Context(), patch)
		if err != nil {
			return friendly(err)
		}
		fmt.Fprintln(out, "✅ Profile updated.")
	}

	fmt.Fprintf(out, "Name:  %s\nEmail: %s\n", u.Name, u.Email)
	if u.Phone != "" {
		fmt.Fprintf(out, "Phone: %s\n", u.Phone)
	}
	return nil
}

// requireView runs the guard for path and turns a redirect into an error
func requireView(a *app.App, path string) error {
	d := a.Open(path)
	switch d.Outcome {
	case guard.Allow:
		return nil
	case guard.RedirectToLogin:
		return fmt.Errorf("login required for %s: run 'topia auth login'", path)
	default:
		return fmt.Errorf("%s requires an admin account", path)
	}
}

// friendly replaces API errors with their user-facing message
func friendly(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := apiErr.Message
	if fields := apiErr.FieldSummary(); fields != "" {
		msg += " (" + fields + ")"
	}
	return errors.New(msg)
}

func prompt(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// readPassword reads without echo on a terminal and falls back to a plain
// line when stdin is piped
func readPassword(in *bufio.Reader, out io.Writer, label string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	b, _ := term.ReadPassword(fd)
	fmt.Fprintln(out)
	return string(b)
}
