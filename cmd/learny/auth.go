package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appI18n "github.com/pavelanni/learny/internal/i18n"
	"github.com/pavelanni/learny/internal/model"
	"github.com/pavelanni/learny/internal/session"
	"github.com/pavelanni/learny/internal/validate"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	cmd.Flags().StringP("email", "e", "", "Account email (prompted when empty)")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gatePublic)
	if a == nil || err != nil {
		return err
	}
	defer a.Close()

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		if email, err = a.readLine("EmailPrompt"); err != nil {
			return err
		}
	}
	password, err := a.readPassword("PasswordPrompt")
	if err != nil {
		return err
	}

	req := model.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Login(req); err != nil {
		return err
	}
	resp, err := a.client.Login(a.ctx, req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := a.sess.Login(*resp); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	slog.Info("logged in", "user_id", resp.User.ID, "role", resp.Role, "token", session.Fingerprint(resp.Token))
	a.out.Linef("LoginSuccess", map[string]any{"Name": resp.User.DisplayName()})
	return nil
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}
	f := cmd.Flags()
	f.String("username", "", "User name (3-50 characters)")
	f.String("name", "", "Full name")
	f.String("email", "", "Email address")
	f.String("role", "student", "Role (student, teacher)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// parseRole accepts the English role names as well as the backend values.
func parseRole(s string) model.UserRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "ogretmen", "öğretmen":
		return model.UserRoleTeacher
	case "student", "ogrenci", "öğrenci":
		return model.UserRoleStudent
	default:
		return model.UserRole(s)
	}
}

func runRegister(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gatePublic)
	if a == nil || err != nil {
		return err
	}
	defer a.Close()

	f := cmd.Flags()
	username, _ := f.GetString("username")
	name, _ := f.GetString("name")
	email, _ := f.GetString("email")
	role, _ := f.GetString("role")

	password, err := a.readPassword("PasswordPrompt")
	if err != nil {
		return err
	}
	confirm, err := a.readPassword("ConfirmPasswordPrompt")
	if err != nil {
		return err
	}

	req := model.RegisterRequest{
		UserName:        strings.TrimSpace(username),
		NameSurname:     strings.TrimSpace(name),
		Mail:            strings.TrimSpace(email),
		Password:        password,
		ConfirmPassword: confirm,
		Role:            parseRole(role),
	}
	if err := validate.Register(req); err != nil {
		return err
	}
	resp, err := a.client.Register(a.ctx, req)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	// A backend that signs the new user in returns a token with the account.
	if resp.Token == "" || resp.User == nil {
		a.out.Line("RegisterSuccess")
		return nil
	}
	if err := a.sess.Login(*resp); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	slog.Info("registered and logged in", "user_id", resp.User.ID, "role", resp.Role, "token", session.Fingerprint(resp.Token))
	a.out.Linef("LoginSuccess", map[string]any{"Name": resp.User.DisplayName()})
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gateAny)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.sess.Authenticated() {
		// The local session is cleared even when the backend call fails.
		if err := a.client.Logout(a.ctx); err != nil {
			slog.Warn("backend logout failed", "error", err)
		}
	} else if err := a.sess.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.out.Line("LogoutSuccess")
	return nil
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()

			a.printSignedIn()
			return nil
		},
	}
}

func (a *app) printSignedIn() {
	u := a.user()
	role := "RoleStudent"
	if u.IsTeacher() {
		role = "RoleTeacher"
	}
	a.out.Linef("SignedInAs", map[string]any{"Name": u.DisplayName(), "Role": appI18n.T(a.ctx, role)})
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Overview of courses and results",
		Args:  cobra.NoArgs,
		RunE:  runDashboard,
	}
}

// runDashboard fetches the overview lists concurrently. The token is
// validated first so an expired session is reported before anything else.
func runDashboard(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gatePrivate)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.Validate(a.ctx); err != nil {
		return err
	}
	a.out.Line("AppTitle")
	a.printSignedIn()
	u := a.user()

	var (
		courses  []model.Course
		results  []model.ResultSummary
		attempts []model.Attempt
	)
	g, ctx := errgroup.WithContext(a.ctx)
	if u.IsTeacher() {
		g.Go(func() error {
			var err error
			courses, err = a.client.CoursesByTeacher(ctx, u.ID)
			return err
		})
	} else {
		g.Go(func() error {
			enrollments, err := a.client.EnrollmentsByStudent(ctx, u.ID)
			for _, e := range enrollments {
				courses = append(courses, e.Course)
			}
			return err
		})
		g.Go(func() error {
			var err error
			results, err = a.client.ResultsByStudent(ctx, u.ID)
			return err
		})
		g.Go(func() error {
			var err error
			attempts, err = a.db.ListAttempts(u.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	a.out.Courses(courses)
	if u.IsTeacher() {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout())
	a.out.Results(results, false)
	if len(attempts) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		a.out.Attempts(attempts)
	}
	return nil
}
