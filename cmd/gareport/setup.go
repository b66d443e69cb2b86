package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gareport/internal/api"
	"gareport/internal/config"
	"gareport/internal/preset"
	"gareport/internal/report"
	"gareport/internal/session"
)

func initSetupCommands() {
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "set [key] [value]",
			Short: "Set a configuration value",
			Long: `Set one configuration value. Keys:
  credentials_file, log.level, log.format,
  rate_limit.requests_per_second, rate_limit.burst, rate_limit.max_retries,
  cache.disabled, cache.metadata_ttl_hours, cache.report_ttl_hours, cache.catalog_entries,
  report.row_limit, report.partial_threshold`,
			Args: cobra.ExactArgs(2),
			Run:  configSetCmdHandler,
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			Run:   configShowCmdHandler,
		},
	)

	presetCreateCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new preset",
		Args:  cobra.ExactArgs(1),
		Run:   presetCreateCmdHandler,
	}
	presetCreateCmd.Flags().String("api", preset.APIGA4, "Reporting API: ga4 or ga3")
	presetCreateCmd.Flags().String("credentials", "", "Credentials file for this preset (defaults to the global one)")
	presetCreateCmd.Flags().String("account", "", "Account ID")
	presetCreateCmd.Flags().String("property", "", "GA4 property ID")
	presetCreateCmd.Flags().String("web-property", "", "Universal Analytics property ID (UA-XXXX-Y)")
	presetCreateCmd.Flags().String("view", "", "Universal Analytics view ID")
	presetCreateCmd.Flags().String("start-date", "", "Default start date (YYYY-MM-DD, NdaysAgo, yesterday, today)")
	presetCreateCmd.Flags().String("end-date", "", "Default end date")
	presetCreateCmd.Flags().Int("row-limit", 0, "Default rows per page")
	presetCreateCmd.Flags().Bool("use", false, "Make the new preset active")

	presetDeleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		Run:   presetDeleteCmdHandler,
	}
	presetDeleteCmd.Flags().Bool("yes", false, "Do not ask for confirmation")

	presetCmd.AddCommand(
		presetCreateCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List all presets",
			Run:   presetListCmdHandler,
		},
		presetDeleteCmd,
		&cobra.Command{
			Use:   "use [name]",
			Short: "Set active preset",
			Args:  cobra.ExactArgs(1),
			Run:   presetUseCmdHandler,
		},
	)

	authCmd.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Authorize with the configured credentials file",
			Long:  "Load the credentials file; OAuth client secrets start a console login whose token is cached for later runs",
			Run:   authLoginCmdHandler,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the cached OAuth login",
			Run:   authResetCmdHandler,
		},
	)
}

func configSetCmdHandler(cmd *cobra.Command, args []string) {
	key, value := args[0], args[1]
	if err := config.Set(key, value); err != nil {
		fatal("failed to save configuration", err)
	}
	configPath, _ := config.GetConfigPath()
	fmt.Printf("✅ %s = %s\n", key, value)
	fmt.Printf("📁 Config file: %s\n", configPath)
}

func configShowCmdHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	configPath, _ := config.GetConfigPath()

	fmt.Println("📋 Current configuration:")
	fmt.Println()
	fmt.Printf("📁 Config Location: %s\n", configPath)
	if cfg.CredentialsFile != "" {
		fmt.Printf("🔑 Credentials: %s\n", cfg.CredentialsFile)
	} else {
		fmt.Println("❌ Credentials: Not configured")
		fmt.Println("💡 Run 'gareport config set credentials_file <path>' to configure")
	}
	if cfg.ActivePreset != "" {
		fmt.Printf("🎯 Active Preset: %s\n", cfg.ActivePreset)
	} else {
		fmt.Println("📝 Active Preset: None")
	}
	fmt.Println()

	printTable(os.Stdout, []string{"Key", "Value"}, [][]string{
		{"log.level", cfg.Log.Level},
		{"log.format", cfg.Log.Format},
		{"rate_limit.requests_per_second", fmt.Sprintf("%g", cfg.RateLimit.RequestsPerSecond)},
		{"rate_limit.burst", fmt.Sprint(cfg.RateLimit.Burst)},
		{"rate_limit.max_retries", fmt.Sprint(cfg.RateLimit.MaxRetries)},
		{"cache.disabled", fmt.Sprint(cfg.Cache.Disabled)},
		{"cache.metadata_ttl_hours", fmt.Sprint(cfg.Cache.MetadataTTLHours)},
		{"cache.report_ttl_hours", fmt.Sprint(cfg.Cache.ReportTTLHours)},
		{"cache.catalog_entries", fmt.Sprint(cfg.Cache.CatalogEntries)},
		{"report.row_limit", fmt.Sprint(cfg.Report.RowLimit)},
		{"report.partial_threshold", fmt.Sprint(cfg.Report.PartialThreshold)},
	})
}

func presetCreateCmdHandler(cmd *cobra.Command, args []string) {
	p := &preset.Preset{Name: args[0]}
	p.API, _ = cmd.Flags().GetString("api")
	p.CredentialsFile, _ = cmd.Flags().GetString("credentials")
	p.AccountID, _ = cmd.Flags().GetString("account")
	p.PropertyID, _ = cmd.Flags().GetString("property")
	p.WebPropertyID, _ = cmd.Flags().GetString("web-property")
	p.ViewID, _ = cmd.Flags().GetString("view")
	p.StartDate, _ = cmd.Flags().GetString("start-date")
	p.EndDate, _ = cmd.Flags().GetString("end-date")
	p.RowLimit, _ = cmd.Flags().GetInt("row-limit")
	use, _ := cmd.Flags().GetBool("use")

	fmt.Printf("➕ Creating preset '%s'...\n", p.Name)

	if p.StartDate != "" || p.EndDate != "" {
		d := p.Defaults(0)
		if err := (report.DateRange{Start: d.StartDate, End: d.EndDate}).Validate(time.Now()); err != nil {
			fatal("invalid default dates", err)
		}
	}
	if err := preset.CreatePreset(p); err != nil {
		fatal("failed to create preset", err)
	}

	presetPath, _ := preset.GetPresetPath(p.Name)
	fmt.Printf("✅ Preset '%s' created successfully\n", p.Name)
	fmt.Printf("📁 Preset file: %s\n", presetPath)

	if use {
		if err := preset.SetActivePreset(p.Name); err != nil {
			fatal("failed to set active preset", err)
		}
		fmt.Printf("🎯 Activated preset '%s'\n", p.Name)
		return
	}
	fmt.Println("🚀 You can now use 'gareport preset use " + p.Name + "' to activate it")
}

func presetListCmdHandler(cmd *cobra.Command, args []string) {
	activeName, err := config.GetActivePreset()
	if err != nil {
		fatal("failed to get active preset", err)
	}
	presets, err := preset.ListPresets()
	if err != nil {
		fatal("failed to list presets", err)
	}

	if len(presets) == 0 {
		fmt.Println("❌ No presets found")
		fmt.Println()
		fmt.Println("💡 Create your first preset with:")
		fmt.Println("   gareport preset create <name> --property <id>")
		return
	}

	rows := make([][]string, 0, len(presets))
	for _, p := range presets {
		active := ""
		if p.Name == activeName {
			active = "▶"
		}
		d := p.Defaults(0)
		rows = append(rows, []string{
			active, p.Name, p.API, p.Source(),
			d.StartDate + " → " + d.EndDate,
			formatTime(p.LastUsed),
		})
	}
	printTable(os.Stdout, []string{"", "Name", "API", "Source", "Dates", "Last used"}, rows)
	fmt.Println()
	fmt.Println("💡 Use 'gareport preset use <name>' to set active preset")
}

func presetDeleteCmdHandler(cmd *cobra.Command, args []string) {
	name := args[0]
	yes, _ := cmd.Flags().GetBool("yes")

	exists, err := preset.PresetExists(name)
	if err != nil {
		fatal("failed to check preset", err)
	}
	if !exists {
		fatal(fmt.Sprintf("preset '%s' does not exist", name), nil)
	}
	if !yes && !confirm(fmt.Sprintf("Are you sure you want to delete preset '%s'?", name)) {
		fmt.Println("❌ Deletion cancelled")
		return
	}

	if err := preset.DeletePreset(name); err != nil {
		fatal("failed to delete preset", err)
	}
	fmt.Printf("✅ Preset '%s' deleted successfully\n", name)
}

func presetUseCmdHandler(cmd *cobra.Command, args []string) {
	if err := preset.SetActivePreset(args[0]); err != nil {
		fatal("failed to set active preset", err)
	}
	fmt.Printf("✅ Activated preset '%s'\n", args[0])
}

func authLoginCmdHandler(cmd *cobra.Command, args []string) {
	ctx, cancel := commandContext(10 * time.Minute)
	defer cancel()

	conn := connect(ctx, cmd)
	if _, err := conn.Credentials.TokenSource().Token(); err != nil {
		fatal("authorization failed", err)
	}

	fmt.Printf("✅ Authorized with %s credentials\n", conn.Credentials.Type)
	if conn.Credentials.ClientEmail != "" {
		fmt.Printf("👤 %s\n", conn.Credentials.ClientEmail)
	}
	if conn.Credentials.CachePath != "" {
		fmt.Printf("💾 Token cached at %s\n", conn.Credentials.CachePath)
	}
}

func authResetCmdHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	file := session.CredentialsFile(cfg, optionalPreset(cmd))
	if file == "" {
		fatal("no credentials file configured", nil)
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		fatal("failed to locate config directory", err)
	}
	if err := api.ResetCache(file, dir); err != nil {
		fatal("failed to reset login", err)
	}
	fmt.Println("✅ Cached login removed; the next command will ask you to log in again")
}
