package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gareport/internal/api"
	"gareport/internal/config"
	"gareport/internal/export"
	"gareport/internal/preset"
	"gareport/internal/query"
	"gareport/internal/report"
	"gareport/internal/report/ga4"
	"gareport/internal/session"
)

var (
	selectCmd = &cobra.Command{
		Use:   "select [property-or-view-id]",
		Short: "Select the property (GA4) or view (GA3) of the active preset",
		Args:  cobra.ExactArgs(1),
		Run:   selectCmdHandler,
	}

	segmentsCmd = &cobra.Command{
		Use:   "segments",
		Short: "List Universal Analytics segments",
		Run:   segmentsListCmd,
	}
)

func initBrowseCommands() {
	accountsListSubCmd := &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Run:   accountsListCmd,
	}
	accountsListSubCmd.Flags().String("api", "", "ga4 or ga3 (defaults to the preset's API)")
	accountsCmd.AddCommand(accountsListSubCmd)

	propertiesListSubCmd := &cobra.Command{
		Use:   "list",
		Short: "List properties for account",
		Run:   propertiesListCmd,
	}
	propertiesListSubCmd.Flags().String("account", "", "Account ID to list properties for (defaults to the preset's account)")

	propertiesExportSubCmd := &cobra.Command{
		Use:   "export",
		Short: "Export properties and their custom definitions to DuckDB",
		Run:   propertiesExportCmd,
	}
	propertiesExportSubCmd.Flags().String("db", "inventory.duckdb", "DuckDB database file")
	propertiesExportSubCmd.Flags().StringSlice("account", nil, "Accounts to export (default: all)")

	propertiesCmd.AddCommand(
		propertiesListSubCmd,
		&cobra.Command{
			Use:   "show [property-id]",
			Short: "Show property details",
			Args:  cobra.MaximumNArgs(1),
			Run:   propertiesShowCmd,
		},
		propertiesExportSubCmd,
	)

	viewsListSubCmd := &cobra.Command{
		Use:   "list",
		Short: "List views of an account or web property",
		Run:   viewsListCmd,
	}
	viewsListSubCmd.Flags().String("account", "", "Account ID (defaults to the preset's account)")
	viewsListSubCmd.Flags().String("web-property", "", "Web property ID; all web properties when empty")
	viewsCmd.AddCommand(viewsListSubCmd)

	goalsListSubCmd := &cobra.Command{
		Use:   "list",
		Short: "List goals of the selected view",
		Run:   goalsListCmd,
	}
	goalsCmd.AddCommand(goalsListSubCmd)

	metadataDimensionsSubCmd := &cobra.Command{
		Use:   "dimensions",
		Short: "List available dimensions",
		Run:   metadataFieldsCmd(false),
	}
	metadataMetricsSubCmd := &cobra.Command{
		Use:   "metrics",
		Short: "List available metrics",
		Run:   metadataFieldsCmd(true),
	}
	for _, c := range []*cobra.Command{metadataDimensionsSubCmd, metadataMetricsSubCmd} {
		c.Flags().Bool("custom-only", false, "Show only custom definitions")
		c.Flags().String("category", "", "Filter by category")
	}

	createDimensionSubCmd := &cobra.Command{
		Use:   "create-dimension",
		Short: "Create a GA4 custom dimension",
		Run:   metadataCreateDimensionCmd,
	}
	createDimensionSubCmd.Flags().String("parameter", "", "Event parameter or user property name (required)")
	createDimensionSubCmd.Flags().String("display-name", "", "Display name (required)")
	createDimensionSubCmd.Flags().String("scope", "EVENT", "EVENT, USER or ITEM")
	createDimensionSubCmd.Flags().String("description", "", "Description")
	createDimensionSubCmd.MarkFlagRequired("parameter")
	createDimensionSubCmd.MarkFlagRequired("display-name")

	metadataCmd.AddCommand(
		metadataDimensionsSubCmd,
		metadataMetricsSubCmd,
		&cobra.Command{
			Use:   "custom-dimensions",
			Short: "List custom dimensions and metrics with their scopes",
			Run:   metadataCustomCmd,
		},
		createDimensionSubCmd,
	)

	datesCmd.AddCommand(&cobra.Command{
		Use:   "set [start] [end]",
		Short: "Set the preset's default date range",
		Long: `Set the default date range of the active preset. Dates are YYYY-MM-DD,
NdaysAgo, yesterday or today; named ranges are also accepted as a single
argument: ` + strings.Join(dateRangeNames(), ", "),
		Args: cobra.RangeArgs(1, 2),
		Run:  datesSetCmd,
	})

	rootCmd.AddCommand(segmentsCmd)
}

func accountsListCmd(cmd *cobra.Command, args []string) {
	apiName, _ := cmd.Flags().GetString("api")
	if apiName == "" {
		if p := optionalPreset(cmd); p != nil {
			apiName = p.API
		} else {
			apiName = preset.APIGA4
		}
	}

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	var (
		accounts []config.Account
		err      error
	)
	if apiName == preset.APIGA3 {
		accounts, err = conn.Management.ListAccountSummaries(ctx)
	} else {
		accounts, err = conn.Admin.ListAccountSummaries(ctx)
	}
	if err != nil {
		fatal("failed to list accounts", err)
	}
	if len(accounts) == 0 {
		fmt.Println("❌ No accounts found")
		fmt.Println("💡 Ensure the credentials have Google Analytics read permissions")
		return
	}

	var rows [][]string
	for _, a := range accounts {
		if apiName == preset.APIGA3 {
			for _, wp := range a.WebProperties {
				for _, v := range wp.Views {
					rows = append(rows, []string{a.ID, a.DisplayName, wp.ID, wp.Name, v.ID, v.Name})
				}
				if len(wp.Views) == 0 {
					rows = append(rows, []string{a.ID, a.DisplayName, wp.ID, wp.Name, "", ""})
				}
			}
			continue
		}
		for _, p := range a.Properties {
			rows = append(rows, []string{a.ID, a.DisplayName, p.ID, p.DisplayName})
		}
		if len(a.Properties) == 0 {
			rows = append(rows, []string{a.ID, a.DisplayName, "", ""})
		}
	}

	fmt.Printf("🏢 Found %d account(s):\n", len(accounts))
	if apiName == preset.APIGA3 {
		printTable(os.Stdout, []string{"Account", "Name", "Web property", "Name", "View", "Name"}, rows)
		return
	}
	printTable(os.Stdout, []string{"Account", "Name", "Property", "Name"}, rows)
	fmt.Println("💡 Use 'gareport select <property-id>' to pick a property")
}

func propertiesListCmd(cmd *cobra.Command, args []string) {
	accountID, _ := cmd.Flags().GetString("account")
	if accountID == "" {
		if p := optionalPreset(cmd); p != nil {
			accountID = p.AccountID
		}
	}
	if accountID == "" {
		fatal("--account is required when the preset has no account", nil)
	}

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	properties, err := conn.Admin.ListProperties(ctx, accountID)
	if err != nil {
		fatal("failed to list properties", err)
	}
	rows := make([][]string, len(properties))
	for i, p := range properties {
		rows[i] = []string{p.ID, p.DisplayName, p.TimeZone, p.CurrencyCode, p.ServiceLevel, p.CreateTime.Format("2006-01-02")}
	}
	fmt.Printf("📊 Account %s has %d propert(ies):\n", accountID, len(properties))
	printTable(os.Stdout, []string{"ID", "Name", "Time zone", "Currency", "Service level", "Created"}, rows)
}

func propertiesShowCmd(cmd *cobra.Command, args []string) {
	var propertyID string
	if len(args) == 1 {
		propertyID = args[0]
	} else if p := optionalPreset(cmd); p != nil {
		propertyID = p.PropertyID
	}
	if propertyID == "" {
		fatal("no property given and none selected", nil)
	}

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	prop, err := conn.Admin.GetProperty(ctx, propertyID)
	if err != nil {
		fatal("failed to get property", err)
	}
	rows := [][]string{
		{"ID", prop.ID},
		{"Name", prop.DisplayName},
		{"Account", prop.AccountID},
		{"Type", prop.PropertyType},
		{"Industry", prop.IndustryCategory},
		{"Time zone", prop.TimeZone},
		{"Currency", prop.CurrencyCode},
		{"Service level", prop.ServiceLevel},
		{"Created", formatTime(prop.CreateTime)},
	}
	if retention, err := conn.Admin.GetDataRetention(ctx, propertyID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read data retention: %v\n", err)
	} else {
		rows = append(rows,
			[]string{"Data retention", retention.EventDataRetention},
			[]string{"Reset on new activity", fmt.Sprint(retention.ResetUserDataOnNewActivity)},
		)
	}
	printTable(os.Stdout, []string{"Field", "Value"}, rows)
}

func propertiesExportCmd(cmd *cobra.Command, args []string) {
	dbPath, _ := cmd.Flags().GetString("db")
	only, _ := cmd.Flags().GetStringSlice("account")

	ctx, cancel := commandContext(15 * time.Minute)
	defer cancel()
	conn := connect(ctx, cmd)

	accounts, err := conn.Admin.ListAccountSummaries(ctx)
	if err != nil {
		fatal("failed to list accounts", err)
	}
	wanted := make(map[string]bool, len(only))
	for _, id := range only {
		wanted[id] = true
	}

	var inventories []export.PropertyInventory
	for _, a := range accounts {
		if len(wanted) > 0 && !wanted[a.ID] {
			continue
		}
		for _, summary := range a.Properties {
			fmt.Printf("🔍 %s (%s)\n", summary.DisplayName, summary.ID)
			inv, err := collectInventory(ctx, conn, a, summary.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping property %s: %v\n", summary.ID, err)
				continue
			}
			inventories = append(inventories, inv)
		}
	}

	if err := export.NewInventoryWriter(dbPath).Write(ctx, inventories); err != nil {
		fatal("failed to write inventory", err)
	}
	fmt.Printf("✅ Exported %d properties to %s\n", len(inventories), dbPath)
	fmt.Println("💡 Query the definition_summary and account_rollup views for an overview")
}

func collectInventory(ctx context.Context, conn *session.Connection, account config.Account, propertyID string) (export.PropertyInventory, error) {
	prop, err := conn.Admin.GetProperty(ctx, propertyID)
	if err != nil {
		return export.PropertyInventory{}, err
	}
	inv := export.PropertyInventory{
		PropertyID:   prop.ID,
		PropertyName: prop.DisplayName,
		AccountID:    account.ID,
		AccountName:  account.DisplayName,
		Currency:     prop.CurrencyCode,
		Timezone:     prop.TimeZone,
		ServiceLevel: prop.ServiceLevel,
		CreatedDate:  prop.CreateTime,
	}

	dims, err := conn.Admin.ListCustomDimensions(ctx, propertyID)
	if err != nil {
		return inv, err
	}
	for _, d := range dims {
		prefix := "customEvent:"
		if strings.EqualFold(d.Scope, "USER") {
			prefix = "customUser:"
		} else if strings.EqualFold(d.Scope, "ITEM") {
			prefix = "customItem:"
		}
		inv.CustomDimensions = append(inv.CustomDimensions, export.CustomDefinitionInfo{
			APIName:     prefix + d.ParameterName,
			UIName:      d.DisplayName,
			Description: d.Description,
			Scope:       d.Scope,
		})
	}

	mets, err := conn.Admin.ListCustomMetrics(ctx, propertyID)
	if err != nil {
		return inv, err
	}
	for _, m := range mets {
		inv.CustomMetrics = append(inv.CustomMetrics, export.CustomDefinitionInfo{
			APIName:     "customEvent:" + m.ParameterName,
			UIName:      m.DisplayName,
			Description: m.Description,
			Scope:       m.Scope,
			Unit:        m.MeasurementUnit,
		})
	}
	return inv, nil
}

func viewsListCmd(cmd *cobra.Command, args []string) {
	accountID, _ := cmd.Flags().GetString("account")
	webPropertyID, _ := cmd.Flags().GetString("web-property")
	if p := optionalPreset(cmd); p != nil {
		if accountID == "" {
			accountID = p.AccountID
		}
		if webPropertyID == "" {
			webPropertyID = p.WebPropertyID
		}
	}
	if accountID == "" {
		fatal("--account is required when the preset has no account", nil)
	}

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	webProperties := []string{webPropertyID}
	if webPropertyID == "" {
		wps, err := conn.Management.ListWebProperties(ctx, accountID)
		if err != nil {
			fatal("failed to list web properties", err)
		}
		webProperties = webProperties[:0]
		for _, wp := range wps {
			webProperties = append(webProperties, wp.ID)
		}
	}

	var rows [][]string
	for _, wp := range webProperties {
		views, err := conn.Management.ListViews(ctx, accountID, wp)
		if err != nil {
			fatal("failed to list views", err)
		}
		for _, v := range views {
			rows = append(rows, []string{wp, v.ID, v.Name, v.Type, v.TimeZone, v.Currency, fmt.Sprint(v.ECommerceTracking)})
		}
	}
	printTable(os.Stdout, []string{"Web property", "View", "Name", "Type", "Time zone", "Currency", "E-commerce"}, rows)
}

func goalsListCmd(cmd *cobra.Command, args []string) {
	p := currentPreset(cmd)
	if p.API != preset.APIGA3 || p.ViewID == "" || p.WebPropertyID == "" || p.AccountID == "" {
		fatal("goals need a ga3 preset with account, web property and view", nil)
	}

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	goals, err := conn.Management.ListGoals(ctx, p.AccountID, p.WebPropertyID, p.ViewID)
	if err != nil {
		fatal("failed to list goals", err)
	}
	rows := make([][]string, len(goals))
	for i, g := range goals {
		rows[i] = []string{g.ID, g.Name, g.Type, fmt.Sprintf("%.2f", g.Value), fmt.Sprint(g.Active)}
	}
	printTable(os.Stdout, []string{"ID", "Name", "Type", "Value", "Active"}, rows)
}

func segmentsListCmd(cmd *cobra.Command, args []string) {
	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	segments, err := conn.Management.ListSegments(ctx)
	if err != nil {
		fatal("failed to list segments", err)
	}
	rows := make([][]string, len(segments))
	for i, s := range segments {
		rows[i] = []string{s.SegmentID, s.Name, s.Type}
	}
	printTable(os.Stdout, []string{"Segment", "Name", "Type"}, rows)
	fmt.Println("💡 Pass segment IDs to 'gareport report run --segments' on ga3 presets")
}

func metadataFieldsCmd(metrics bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		customOnly, _ := cmd.Flags().GetBool("custom-only")
		category, _ := cmd.Flags().GetString("category")

		ctx, cancel := commandContext(60 * time.Second)
		defer cancel()
		s, _, _, closeFn := openSession(ctx, cmd)
		defer closeFn()

		if s.API() != preset.APIGA4 {
			fatal("field metadata is only available for ga4 presets", nil)
		}
		catalog, err := s.Catalog(ctx, s.Source())
		if err != nil {
			fatal("failed to load metadata", err)
		}

		var fields []ga4.Field
		if metrics {
			fields = catalog.SortedMetrics()
		} else {
			fields = catalog.SortedDimensions()
		}
		fields = query.FilterFields(fields, customOnly, category)

		rows := make([][]string, len(fields))
		for i, f := range fields {
			custom := ""
			if f.Custom {
				custom = "✓"
			}
			row := []string{f.APIName, f.UIName, f.Category, custom}
			if metrics {
				row = append(row, f.Type)
			}
			rows[i] = row
		}
		header := []string{"API name", "Name", "Category", "Custom"}
		if metrics {
			header = append(header, "Type")
		}
		printTable(os.Stdout, header, rows)
		fmt.Printf("📊 %d field(s) for property %s\n", len(fields), s.Source())
	}
}

func metadataCustomCmd(cmd *cobra.Command, args []string) {
	p := currentPreset(cmd)
	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	var rows [][]string
	if p.API == preset.APIGA3 {
		if p.AccountID == "" || p.WebPropertyID == "" {
			fatal("ga3 custom definitions need a preset with account and web property", nil)
		}
		dims, err := conn.Management.ListCustomDimensions(ctx, p.AccountID, p.WebPropertyID)
		if err != nil {
			fatal("failed to list custom dimensions", err)
		}
		mets, err := conn.Management.ListCustomMetrics(ctx, p.AccountID, p.WebPropertyID)
		if err != nil {
			fatal("failed to list custom metrics", err)
		}
		for _, d := range dims {
			rows = append(rows, []string{"dimension", fmt.Sprintf("ga:dimension%d", d.Index), d.Name, d.Scope, fmt.Sprint(d.Active)})
		}
		for _, m := range mets {
			rows = append(rows, []string{"metric", fmt.Sprintf("ga:metric%d", m.Index), m.Name, m.Scope, fmt.Sprint(m.Active)})
		}
		printTable(os.Stdout, []string{"Kind", "API name", "Name", "Scope", "Active"}, rows)
		return
	}

	if p.PropertyID == "" {
		fatal("no property selected", nil)
	}
	dims, err := conn.Admin.ListCustomDimensions(ctx, p.PropertyID)
	if err != nil {
		fatal("failed to list custom dimensions", err)
	}
	mets, err := conn.Admin.ListCustomMetrics(ctx, p.PropertyID)
	if err != nil {
		fatal("failed to list custom metrics", err)
	}
	for _, d := range dims {
		rows = append(rows, []string{"dimension", d.ParameterName, d.DisplayName, d.Scope, d.Description})
	}
	for _, m := range mets {
		rows = append(rows, []string{"metric", m.ParameterName, m.DisplayName, m.Scope, m.Description})
	}
	printTable(os.Stdout, []string{"Kind", "Parameter", "Name", "Scope", "Description"}, rows)
}

func metadataCreateDimensionCmd(cmd *cobra.Command, args []string) {
	p := currentPreset(cmd)
	if p.API != preset.APIGA4 || p.PropertyID == "" {
		fatal("custom dimensions can only be created on a ga4 preset with a property", nil)
	}
	dim := api.CustomDimension{}
	dim.ParameterName, _ = cmd.Flags().GetString("parameter")
	dim.DisplayName, _ = cmd.Flags().GetString("display-name")
	dim.Scope, _ = cmd.Flags().GetString("scope")
	dim.Description, _ = cmd.Flags().GetString("description")

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	conn := connect(ctx, cmd)

	created, err := conn.Admin.CreateCustomDimension(ctx, p.PropertyID, dim)
	if err != nil {
		fatal("failed to create custom dimension", err)
	}
	fmt.Printf("✅ Created %s (%s, %s scope)\n", created.DisplayName, created.Name, created.Scope)
}

func selectCmdHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	p := currentPreset(cmd)

	s, err := session.New(p, cfg, session.Clients{})
	if err != nil {
		fatal("invalid preset", err)
	}
	if p.API == preset.APIGA3 {
		err = s.SelectView(args[0])
	} else {
		err = s.SelectProperty(args[0])
	}
	if err != nil {
		fatal("failed to select", err)
	}
	if err := preset.SavePreset(s.Preset()); err != nil {
		fatal("failed to save preset", err)
	}
	fmt.Printf("✅ Preset '%s' now reports on %s\n", p.Name, s.Source())
}

func datesSetCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	p := currentPreset(cmd)

	start, end := "", ""
	if len(args) == 1 {
		r, ok := query.FindDateRange(args[0])
		if !ok {
			fatal(fmt.Sprintf("unknown date range %q; known: %s", args[0], strings.Join(dateRangeNames(), ", ")), nil)
		}
		start, end = r.StartDate, r.EndDate
	} else {
		start, end = args[0], args[1]
	}

	s, err := session.New(p, cfg, session.Clients{})
	if err != nil {
		fatal("invalid preset", err)
	}
	if err := s.SetDates(start, end); err != nil {
		fatal("invalid dates", err)
	}
	if _, err := preset.UpdatePreset(p.Name, func(p *preset.Preset) error {
		p.StartDate, p.EndDate = start, end
		return nil
	}); err != nil {
		fatal("failed to save preset", err)
	}

	d := s.Defaults()
	resolved, _ := report.DateRange{Start: d.StartDate, End: d.EndDate}.Resolve(time.Now())
	fmt.Printf("✅ Default dates: %s → %s (%s)\n", start, end, resolved)
}

func dateRangeNames() []string {
	names := make([]string, len(query.CommonDateRanges))
	for i, r := range query.CommonDateRanges {
		names[i] = r.Name
	}
	return names
}
