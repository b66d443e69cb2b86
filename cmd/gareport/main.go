package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gareport/internal/api"
	"gareport/internal/apierr"
	"gareport/internal/cache"
	"gareport/internal/config"
	"gareport/internal/logger"
	"gareport/internal/preset"
	"gareport/internal/session"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "gareport",
		Short: "Query Google Analytics (GA4 and Universal Analytics) from the command line",
		Long: `gareport runs Google Analytics reports against GA4 properties and Universal
Analytics views, and writes the results to the console, CSV/JSON files, DuckDB,
Google Sheets or BigQuery.

Examples:
  gareport config set credentials_file ~/client_secret.json
  gareport preset create shop --api ga4 --property 263883430
  gareport report run -d date,pagePath -m screenPageViews --sort -screenPageViews
  gareport report run -d date -m sessions --dimension-filter "country==Japan" -o sessions.csv
  gareport report audit --all-custom --since 2023-01-01`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.LoadEnv(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage global configuration",
		Long:  "Configure the credentials file, logging, rate limits, cache and report defaults",
	}

	presetCmd = &cobra.Command{
		Use:   "preset",
		Short: "Manage presets",
		Long:  "Create, list, delete, and switch between presets (credentials + property or view + default dates)",
	}

	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Manage Google authorization",
	}

	accountsCmd = &cobra.Command{
		Use:   "accounts",
		Short: "List Google Analytics accounts",
	}

	propertiesCmd = &cobra.Command{
		Use:   "properties",
		Short: "List and inspect GA4 properties",
	}

	viewsCmd = &cobra.Command{
		Use:   "views",
		Short: "List Universal Analytics views",
	}

	goalsCmd = &cobra.Command{
		Use:   "goals",
		Short: "List Universal Analytics goals",
	}

	metadataCmd = &cobra.Command{
		Use:   "metadata",
		Short: "Explore dimensions and metrics",
		Long:  "Discover dimensions, metrics and custom definitions of the selected property or view",
	}

	datesCmd = &cobra.Command{
		Use:   "dates",
		Short: "Manage the preset's default report dates",
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Run reports",
		Long:  "Run reports from flags or YAML templates and audit how data has been collected",
	}

	resultsCmd = &cobra.Command{
		Use:   "results",
		Short: "Manage saved results",
		Long:  "List, show, export and delete report results saved in the local cache",
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage data cache",
		Long:  "Manage metadata and report caching",
	}

	sheetsCmd = &cobra.Command{
		Use:   "sheets",
		Short: "Read Google Sheets",
	}

	bqCmd = &cobra.Command{
		Use:   "bq",
		Short: "Browse BigQuery",
	}
)

func init() {
	rootCmd.PersistentFlags().String("preset", "", "Preset to use (overrides active preset)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	initSetupCommands()
	initBrowseCommands()
	initReportCommands()
	initResultCommands()
	initStorageCommands()

	rootCmd.AddCommand(configCmd, presetCmd, authCmd, accountsCmd, propertiesCmd, viewsCmd, goalsCmd,
		metadataCmd, selectCmd, datesCmd, reportCmd, resultsCmd, cacheCmd, sheetsCmd, bqCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fatal prints err with a hint for errors the user can act on and exits
func fatal(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	switch {
	case api.IsInvalidGrant(err):
		fmt.Fprintln(os.Stderr, "💡 The saved login has expired; run 'gareport auth login' to log in again")
	case errors.Is(err, apierr.ErrAPIDisabled):
		fmt.Fprintln(os.Stderr, "💡 Enable the API in the Google Cloud console for your project")
	case errors.Is(err, apierr.ErrConfiguration):
		fmt.Fprintln(os.Stderr, "💡 Check 'gareport config show' and your preset")
	default:
		if hint := apierr.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "💡 %s\n", hint)
		}
	}
	os.Exit(1)
}

// loadConfig reads the global configuration and sets up logging
func loadConfig(cmd *cobra.Command) *config.AppConfig {
	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load configuration", err)
	}
	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger.Init(level, cfg.Log.Format)
	return cfg
}

// currentPreset returns the --preset preset or the active one
func currentPreset(cmd *cobra.Command) *preset.Preset {
	name, _ := cmd.Flags().GetString("preset")
	var (
		p   *preset.Preset
		err error
	)
	if name != "" {
		p, err = preset.LoadPreset(name)
	} else {
		p, err = preset.GetActivePreset()
	}
	if err != nil {
		fatal("failed to load preset", err)
	}
	if p == nil {
		fatal("no active preset - run 'gareport preset use <name>' first", nil)
	}
	return p
}

// optionalPreset is currentPreset without failing when none is active
func optionalPreset(cmd *cobra.Command) *preset.Preset {
	name, _ := cmd.Flags().GetString("preset")
	if name != "" {
		return currentPreset(cmd)
	}
	p, err := preset.GetActivePreset()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not load active preset")
		return nil
	}
	return p
}

// openCache opens the preset's DuckDB cache. It returns nil and warns when
// the cache is disabled or cannot be opened
func openCache(cfg *config.AppConfig, presetName string) *cache.CacheClient {
	if cfg.Cache.Disabled {
		return nil
	}
	c, err := cache.NewCacheClient(presetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to open cache, using non-cached mode: %v\n", err)
		return nil
	}
	return c
}

func loginPrompt() *api.LoginPrompt {
	return &api.LoginPrompt{In: os.Stdin, Out: os.Stderr}
}

// cacheInterface keeps a nil *CacheClient from becoming a non-nil interface
func cacheInterface(c *cache.CacheClient) api.CacheInterface {
	if c == nil {
		return nil
	}
	return c
}

// openSession connects with the current preset. The returned close function
// releases the cache
func openSession(ctx context.Context, cmd *cobra.Command) (*session.Session, *session.Connection, *cache.CacheClient, func()) {
	cfg := loadConfig(cmd)
	p := currentPreset(cmd)
	c := openCache(cfg, p.Name)
	closeFn := func() {
		if c != nil {
			c.Close()
		}
	}

	s, conn, err := session.Open(ctx, cfg, p, cacheInterface(c), loginPrompt())
	if err != nil {
		closeFn()
		fatal("failed to open session", err)
	}
	return s, conn, c, closeFn
}

// connect authorizes without requiring a preset
func connect(ctx context.Context, cmd *cobra.Command) *session.Connection {
	cfg := loadConfig(cmd)
	conn, err := session.Connect(ctx, cfg, session.CredentialsFile(cfg, optionalPreset(cmd)), nil, loginPrompt())
	if err != nil {
		fatal("failed to connect", err)
	}
	return conn
}

func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// printTable renders a simple listing
func printTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			fatal("failed to render table", err)
		}
	}
	if err := table.Render(); err != nil {
		fatal("failed to render table", err)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("⚠️  %s (y/N): ", prompt)
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
