// Package main provides the CLI entrypoint for worldboard.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/worldboard/internal/api"
	"github.com/verte-zerg/worldboard/internal/app"
	"github.com/verte-zerg/worldboard/internal/config"
	"github.com/verte-zerg/worldboard/internal/demo"
	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/model"
	"github.com/verte-zerg/worldboard/internal/session"
	"github.com/verte-zerg/worldboard/internal/store"
)

const (
	envAPIURL       = "WORLDBOARD_API_URL"
	defaultLogLevel = "info"
)

var (
	apiURL     string
	apiTimeout int
	logLevel   string
	logFile    string

	startRoute    string
	validateYears bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "worldboard",
		Short:         "Terminal dashboard for world education data",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDashboardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", api.DefaultBaseURL, "backend base URL (env "+envAPIURL+")")
	rootCmd.PersistentFlags().IntVar(&apiTimeout, "timeout", 0, "request timeout in seconds (0 = none)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", config.DefaultLogPath(), "log file used while the dashboard is open")
	rootCmd.Flags().StringVar(&startRoute, "route", string(app.RouteDashboard), "route to open (/login or /dashboard)")
	rootCmd.Flags().BoolVar(&validateYears, "validate-years", false, "reject year ranges outside the available data")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newOptionsCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newDemoServerCmd())

	return rootCmd
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closer, err := setupLogging(cmd, fileCfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if closer == nil {
			return
		}
		if cerr := closer.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()

	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)

	client := newClient(cfg, sess)
	logging.Infof("starting dashboard api=%s route=%s", client.BaseURL(), cfg.StartRoute)
	program := tea.NewProgram(app.NewModel(cfg, sess, client), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// loadConfig merges the config file, environment and flags. A flag set on the
// command line always wins.
func loadConfig(cmd *cobra.Command) (config.FileConfig, model.Config, error) {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return config.FileConfig{}, model.Config{}, err
	}
	applyIntConfig(cmd, "timeout", &apiTimeout, fileCfg.API.Timeout)
	applyBoolConfig(cmd, "validate-years", &validateYears, fileCfg.Dashboard.ValidateYears)

	cfg := model.Config{
		BaseURL:       resolveBaseURL(cmd, fileCfg.API.BaseURL),
		Timeout:       time.Duration(apiTimeout) * time.Second,
		ValidateYears: validateYears,
		TestCredentials: model.Credentials{
			Username: demo.TestUsername,
			Password: demo.TestPassword,
		},
		ShowTestButton: true,
		StartRoute:     startRoute,
	}
	if fileCfg.Login.TestCredentials != nil {
		cfg.ShowTestButton = *fileCfg.Login.TestCredentials
	}
	if fileCfg.Login.TestUsername != nil {
		cfg.TestCredentials.Username = *fileCfg.Login.TestUsername
	}
	if fileCfg.Login.TestPassword != nil {
		cfg.TestCredentials.Password = *fileCfg.Login.TestPassword
	}
	if err := validateConfig(cfg); err != nil {
		return config.FileConfig{}, model.Config{}, err
	}
	return fileCfg, cfg, nil
}

func resolveBaseURL(cmd *cobra.Command, fromFile *string) string {
	if cmd.Flags().Changed("api-url") {
		return apiURL
	}
	if env := strings.TrimSpace(os.Getenv(envAPIURL)); env != "" {
		return env
	}
	if fromFile != nil && strings.TrimSpace(*fromFile) != "" {
		return strings.TrimSpace(*fromFile)
	}
	return apiURL
}

func validateConfig(cfg model.Config) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("--timeout must be >= 0")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("api url must start with http:// or https://: %q", cfg.BaseURL)
	}
	if cfg.StartRoute == "" {
		return fmt.Errorf("--route must not be empty")
	}
	return nil
}

// setupLogging applies the log level and, for the full-screen dashboard,
// moves log output to a file. The closer is nil when logs stay on stderr.
func setupLogging(cmd *cobra.Command, fileCfg config.FileConfig, toFile bool) (io.Closer, error) {
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	if err := logging.SetLevel(logLevel); err != nil {
		return nil, err
	}
	if !toFile {
		logging.SetOutput(cmd.ErrOrStderr())
		return nil, nil
	}
	return logging.ToFile(logFile)
}

func openSession(ctx context.Context) (*store.Store, *session.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	sess, err := session.Open(ctx, st)
	if err != nil {
		closeStore(st)
		return nil, nil, err
	}
	return st, sess, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newClient(cfg model.Config, tokens api.TokenSource) *api.Client {
	var opts []api.Option
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	return api.New(cfg.BaseURL, tokens, opts...)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := writeDefaultConfig(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// writeDefaultConfig creates path from the template unless it already exists.
func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# worldboard configuration
# Uncomment a value to enable it. CLI flags override config values.

[api]
# base-url = %q   # Backend base URL (env %s overrides)
# timeout = 0      # Request timeout in seconds, 0 waits forever

[dashboard]
# validate-years = false   # Reject start > end or years outside the data range

[login]
# test-credentials = true  # Offer ctrl+t to sign in with the test account
# test-username = %q
# test-password = %q

[log]
# file = %q
# level = %q
`,
		api.DefaultBaseURL,
		envAPIURL,
		demo.TestUsername,
		demo.TestPassword,
		config.DefaultLogPath(),
		defaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
