package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pavelanni/learny/internal/api"
	appI18n "github.com/pavelanni/learny/internal/i18n"
	"github.com/pavelanni/learny/internal/model"
	"github.com/pavelanni/learny/internal/session"
	"github.com/pavelanni/learny/internal/store"
	"github.com/pavelanni/learny/internal/validate"
	"github.com/pavelanni/learny/internal/view"
)

var (
	errLoginRequired = errors.New("login required")
	errTeachersOnly  = errors.New("teachers only")
	errStudentsOnly  = errors.New("students only")
	errAbandoned     = errors.New("exam abandoned")
	// errReported means the user has already been told what went wrong.
	errReported = errors.New("reported")
)

// uiCtx carries the localizer once the root pre-run has initialized it.
var uiCtx = context.Background()

func main() {
	if err := rootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "learny",
		Short:         "Terminal client for the Learny exam platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			lang, err := appI18n.Init(viperForCmd(cmd).GetString("lang"))
			if err != nil {
				return fmt.Errorf("init i18n: %w", err)
			}
			uiCtx = appI18n.Context(cmd.Context(), lang)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.String("api-url", "http://localhost:8080/api", "Backend API base URL")
	f.Duration("timeout", 20*time.Second, "Backend request timeout")
	f.String("db", defaultDBPath(), "SQLite file for the local session and attempt journal")
	f.StringP("lang", "l", os.Getenv("LANG"), "UI language (en, tr)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	examCmd := &cobra.Command{Use: "exam", Short: "Inspect, author and review exams"}
	examCmd.AddCommand(examShowCmd(), examCreateCmd(), examResultsCmd())

	root.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		dashboardCmd(),
		coursesCmd(),
		examsCmd(),
		examCmd,
		takeCmd(),
		resultCmd(),
		resultsCmd(),
	)
	return root
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "learny.db"
	}
	return filepath.Join(home, ".config", "learny", "learny.db")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("LEARNY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("learny")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/learny")
	v.AddConfigPath("/etc/learny")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is what every command works with once the gate has let it through.
type app struct {
	ctx    context.Context
	cfg    model.Config
	db     *store.Store
	sess   *session.Store
	client *api.Client
	out    *view.Printer
	w      io.Writer
	in     *bufio.Reader
}

// gate selects how a command treats the session.
type gate int

const (
	gatePublic  gate = iota // login, register: bounce when already logged in
	gatePrivate             // everything else needs a session
	gateAny                 // logout
)

// openApp loads the configuration and the persisted session, then applies
// the route gate. It returns a nil app (and nil error) when the command
// should not run because the user is already logged in.
func openApp(cmd *cobra.Command, g gate) (*app, error) {
	v := viperForCmd(cmd)
	cfg := model.Config{
		APIURL:  v.GetString("api-url"),
		Timeout: v.GetDuration("timeout"),
		DBPath:  v.GetString("db"),
		Lang:    appI18n.Match(v.GetString("lang")),
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sess := session.New(db)
	if err := sess.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}

	a := &app{
		ctx:  uiCtx,
		cfg:  cfg,
		db:   db,
		sess: sess,
		client: api.New(cfg.APIURL,
			api.WithSession(sess),
			api.WithTimeout(cfg.Timeout),
			api.WithLanguage(cfg.Lang),
		),
		out: view.New(uiCtx, cmd.OutOrStdout(), isTerminal(os.Stdout)),
		w:   cmd.OutOrStdout(),
		in:  bufio.NewReader(cmd.InOrStdin()),
	}
	sess.OnClear(func() {
		slog.Info("session cleared")
	})

	if g == gateAny {
		return a, nil
	}
	return a.admit(sess.Decide(g == gatePrivate))
}

// admit applies a gate decision. Any outcome other than Render closes a.
func (a *app) admit(d session.Decision) (*app, error) {
	switch d {
	case session.Render:
		return a, nil
	case session.RedirectHome:
		a.out.Linef("AlreadyLoggedIn", map[string]any{"Name": a.sess.User().DisplayName()})
		a.Close()
		return nil, nil
	case session.Loading:
		a.out.Line("SessionLoading")
		a.Close()
		return nil, errReported
	default:
		a.Close()
		return nil, errLoginRequired
	}
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("close database", "error", err)
	}
}

// user returns the logged-in user. Only valid behind gatePrivate.
func (a *app) user() model.User {
	if u := a.sess.User(); u != nil {
		return *u
	}
	return model.User{}
}

func (a *app) requireTeacher() error {
	if !a.user().IsTeacher() {
		return errTeachersOnly
	}
	return nil
}

func (a *app) requireStudent() error {
	if a.user().IsTeacher() {
		return errStudentsOnly
	}
	return nil
}

// readLine prints the translated prompt and reads one trimmed line.
func (a *app) readLine(msgID string) (string, error) {
	a.out.Prompt(msgID, nil)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var (
	readPasswordFunc = term.ReadPassword // mockable
	stdinIsTerminal  = func() bool { return isTerminal(os.Stdin) }
)

// readPassword reads a password without echo when stdin is a terminal.
func (a *app) readPassword(msgID string) (string, error) {
	if !stdinIsTerminal() {
		return a.readLine(msgID)
	}
	a.out.Prompt(msgID, nil)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(a.w)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "e", "evet":
		return true
	}
	return false
}

// reportError prints err for the user. Errors with a known meaning get a
// translated message; validation errors list every field.
func reportError(w io.Writer, err error) {
	var verr *validate.ValidationError
	switch {
	case errors.Is(err, errReported):
	case api.IsAuth(err):
		fmt.Fprintln(w, appI18n.T(uiCtx, "SessionExpired"))
		fmt.Fprintln(w, appI18n.T(uiCtx, "LoginRequired"))
	case errors.Is(err, errLoginRequired):
		fmt.Fprintln(w, appI18n.T(uiCtx, "LoginRequired"))
	case errors.Is(err, errTeachersOnly):
		fmt.Fprintln(w, appI18n.T(uiCtx, "TeachersOnly"))
	case errors.Is(err, errStudentsOnly):
		fmt.Fprintln(w, appI18n.T(uiCtx, "StudentsOnly"))
	case errors.As(err, &verr):
		fmt.Fprintln(w, appI18n.T(uiCtx, "ValidationFailed"))
		for _, f := range verr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
		}
	default:
		fmt.Fprintln(w, appI18n.Td(uiCtx, "ErrorMessage", map[string]any{"Error": err}))
	}
}
