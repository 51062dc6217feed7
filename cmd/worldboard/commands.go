package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/worldboard/internal/charts"
	"github.com/verte-zerg/worldboard/internal/config"
	"github.com/verte-zerg/worldboard/internal/dashboard"
	"github.com/verte-zerg/worldboard/internal/demo"
	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/pipeline"
)

const (
	defaultDemoAddr    = ":8000"
	defaultDemoSeed    = 1
	defaultDemoMinYear = 2000
	defaultDemoMaxYear = 2020
	defaultDemoMissing = 0.1
	pngWidth           = 1024
	pngHeight          = 576
	trendTitle         = "Primary completion rate by year"
	comparisonTitle    = "Average primary completion rate"
)

var (
	loginUsername string
	loginPassword string
	loginTest     bool

	fetchCountries []string
	fetchStart     int
	fetchEnd       int
	fetchPNGDir    string
	outputFormat   string

	demoAddr          string
	demoSeed          int64
	demoCountriesPath string
	demoMinYear       int
	demoMaxYear       int
	demoMissing       float64
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginUsername, "username", "", "username")
	cmd.Flags().StringVar(&loginPassword, "password", "", "password")
	cmd.Flags().BoolVar(&loginTest, "test", false, "use the configured test credentials")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cmd, fileCfg, false); err != nil {
		return err
	}
	username, password := loginUsername, loginPassword
	if loginTest {
		username, password = cfg.TestCredentials.Username, cfg.TestCredentials.Password
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)

	token, err := newClient(cfg, sess).Authenticate(cmd.Context(), username, password)
	if err != nil {
		logging.Warnf("login failed: %v", err)
		return fmt.Errorf("invalid credentials")
	}
	if err := sess.Set(cmd.Context(), token); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged in."); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE:  runLogoutCmd,
	}
}

func runLogoutCmd(cmd *cobra.Command, _ []string) error {
	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := sess.Clear(cmd.Context()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out."); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the API URL and login state",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)

	state := "no"
	if sess.Authenticated() {
		state = "yes"
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "api: %s\nlogged in: %s\n", newClient(cfg, sess).BaseURL(), state); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newOptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the available countries and year range",
		Args:  cobra.NoArgs,
		RunE:  runOptionsCmd,
	}
	cmd.Flags().StringVar(&outputFormat, "format", formatText, "output format (text, json, yaml)")
	return cmd
}

func runOptionsCmd(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}
	fileCfg, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cmd, fileCfg, false); err != nil {
		return err
	}
	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)

	opts, err := newClient(cfg, sess).GetFilterOptions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch filter options: %w", err)
	}
	out := cmd.OutOrStdout()
	if outputFormat != formatText {
		return writeStructured(out, outputFormat, newOptionsReport(opts))
	}
	if _, err := fmt.Fprintf(out, "years: %d-%d\n", opts.YearRange.MinYear, opts.YearRange.MaxYear); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, country := range opts.Countries {
		if _, err := fmt.Fprintln(out, country); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch data and print the charts",
		Args:  cobra.NoArgs,
		RunE:  runFetchCmd,
	}
	cmd.Flags().StringSliceVar(&fetchCountries, "country", nil, "country to include (repeatable; default shortlist)")
	cmd.Flags().IntVar(&fetchStart, "start", 0, "first year (default: earliest available)")
	cmd.Flags().IntVar(&fetchEnd, "end", 0, "last year (default: latest available)")
	cmd.Flags().StringVar(&fetchPNGDir, "png", "", "also write trend.png and comparison.png to this directory")
	cmd.Flags().StringVar(&outputFormat, "format", formatText, "output format (text, json, yaml)")
	return cmd
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}
	fileCfg, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cmd, fileCfg, false); err != nil {
		return err
	}
	st, sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctrl := dashboard.New(newClient(cfg, sess), dashboard.Options{
		ValidateYears: cfg.ValidateYears,
	})
	sel, err := ctrl.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch filter options: %w", err)
	}
	if len(fetchCountries) > 0 {
		sel.Countries = fetchCountries
	}
	if fetchStart != 0 {
		sel.StartYear = fetchStart
	}
	if fetchEnd != 0 {
		sel.EndYear = fetchEnd
	}
	pending, err := ctrl.ApplySelection(cmd.Context(), sel)
	if err != nil {
		return err
	}
	ctrl.Commit(pending.Wait())
	if err := ctrl.Err(); err != nil {
		return fmt.Errorf("failed to fetch world data: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat != formatText {
		if err := writeStructured(out, outputFormat, newFetchReport(ctrl.Selection(), ctrl.Rows(), ctrl.Charts())); err != nil {
			return err
		}
		if fetchPNGDir != "" && ctrl.State() == dashboard.StateReady {
			return exportPNGs(fetchPNGDir, ctrl.Charts())
		}
		return nil
	}
	if ctrl.State() != dashboard.StateReady {
		if _, err := fmt.Fprintln(out, "No data for the current selection."); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	c := ctrl.Charts()
	useColor := charts.ShouldUseColor(out)
	if err := charts.RenderTrend(out, trendTitle, c, 0, 0, useColor); err != nil {
		return fmt.Errorf("failed to render trend: %w", err)
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := charts.RenderComparison(out, comparisonTitle, c, 0, useColor); err != nil {
		return fmt.Errorf("failed to render comparison: %w", err)
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := charts.RenderAverageTable(out, c); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	if fetchPNGDir != "" {
		return exportPNGs(fetchPNGDir, c)
	}
	return nil
}

func exportPNGs(dir string, c pipeline.Charts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create png directory: %w", err)
	}
	if err := writePNG(filepath.Join(dir, "trend.png"), func(f *os.File) error {
		return charts.ExportTrendPNG(f, c, pngWidth, pngHeight)
	}); err != nil {
		return err
	}
	return writePNG(filepath.Join(dir, "comparison.png"), func(f *os.File) error {
		return charts.ExportComparisonPNG(f, c, pngWidth, pngHeight)
	})
}

func writePNG(path string, render func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	logging.Infof("wrote %s", path)
	return nil
}

func newDemoServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Serve a local backend with generated data",
		Args:  cobra.NoArgs,
		RunE:  runDemoServerCmd,
	}
	cmd.Flags().StringVar(&demoAddr, "addr", defaultDemoAddr, "listen address")
	cmd.Flags().Int64Var(&demoSeed, "seed", defaultDemoSeed, "random seed for the generated data")
	cmd.Flags().StringVar(&demoCountriesPath, "countries", "", "file with one country per line")
	cmd.Flags().IntVar(&demoMinYear, "min-year", defaultDemoMinYear, "first generated year")
	cmd.Flags().IntVar(&demoMaxYear, "max-year", defaultDemoMaxYear, "last generated year")
	cmd.Flags().Float64Var(&demoMissing, "missing", defaultDemoMissing, "share of rows without a value (0-1)")
	return cmd
}

func runDemoServerCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	if _, err := setupLogging(cmd, fileCfg, false); err != nil {
		return err
	}
	if demoMinYear <= 0 || demoMaxYear < demoMinYear {
		return fmt.Errorf("--min-year and --max-year must form a valid range")
	}
	if demoMissing < 0 || demoMissing > 1 {
		return fmt.Errorf("--missing must be between 0 and 1")
	}
	countries := demo.DefaultCountries
	if demoCountriesPath != "" {
		countries, err = demo.LoadCountries(demoCountriesPath)
		if err != nil {
			return fmt.Errorf("failed to load countries: %w", err)
		}
	}

	rows := demo.NewGenerator(demoSeed).Generate(countries, demoMinYear, demoMaxYear, demoMissing)
	srv := &http.Server{
		Addr:              demoAddr,
		Handler:           demo.NewServer(rows).Handler("/api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Infof("demo backend listening on %s (user %s)", demoAddr, demo.TestUsername)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("demo server failed: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop demo server: %w", err)
	}
	logging.Infof("demo backend stopped")
	return nil
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}
