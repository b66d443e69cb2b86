package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gareport/internal/audit"
	"gareport/internal/bq"
	"gareport/internal/cache"
	"gareport/internal/export"
	"gareport/internal/logger"
	"gareport/internal/preset"
	"gareport/internal/query"
	"gareport/internal/report"
	"gareport/internal/report/ga4"
	"gareport/internal/results"
	"gareport/internal/session"
	"gareport/internal/sheets"
)

func initReportCommands() {
	reportRunSubCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a report",
		Long: `Run a report against the preset's property or view.

Filters use the compact syntax "field<op>value" joined by ";" where op is one
of == != =@ !@ =~ !~ > <. Sort fields are comma separated; prefix with "-"
for descending.

Examples:
  gareport report run -d date -m sessions,totalUsers
  gareport report run -d pagePath -m screenPageViews --dimension-filter "pagePath=~^/blog/" --sort -screenPageViews
  gareport report run --template reports/ --name top-pages -o top.csv --save top-pages`,
		Run: reportRunCmd,
	}
	f := reportRunSubCmd.Flags()
	f.StringSliceP("dimensions", "d", nil, "Dimensions")
	f.StringSliceP("metrics", "m", nil, "Metrics")
	f.String("dimension-filter", "", `Dimension filter, e.g. "country==Japan;pagePath=@/blog"`)
	f.String("metric-filter", "", `Metric filter, e.g. "sessions>10"`)
	f.String("sort", "", `Sort fields, e.g. "date,-sessions"`)
	f.String("start-date", "", "Start date (defaults to the preset)")
	f.String("end-date", "", "End date (defaults to the preset)")
	f.Int("limit", 0, "Rows per page (defaults to the preset)")
	f.Bool("total", false, "Include totals rows")
	f.StringSlice("segments", nil, "GA3 segment IDs")
	f.String("template", "", "YAML template file or directory")
	f.String("name", "", "Template name when --template holds several")
	f.String("save-template", "", "Write the effective query to this YAML file")
	addOutputFlags(reportRunSubCmd)

	reportTemplatesSubCmd := &cobra.Command{
		Use:   "templates [path]",
		Short: "List report templates",
		Args:  cobra.ExactArgs(1),
		Run:   reportTemplatesCmd,
	}

	reportAuditSubCmd := &cobra.Command{
		Use:   "audit",
		Short: "Show when each value of a dimension was collected",
		Long: `Report [dimension, date] x [metric] up to yesterday and summarise each
dimension value with its total and the first and last day it was seen.`,
		Run: reportAuditCmd,
	}
	reportAuditSubCmd.Flags().String("dimension", audit.DefaultDimension, "Dimension to audit")
	reportAuditSubCmd.Flags().String("metric", audit.DefaultMetric, "Metric to total")
	reportAuditSubCmd.Flags().String("since", "", "First day to include (defaults to the property creation date)")
	reportAuditSubCmd.Flags().Bool("all-custom", false, "Audit every custom dimension of the property")
	reportAuditSubCmd.Flags().Bool("metrics", false, "Audit every custom metric against eventName")
	reportAuditSubCmd.Flags().StringSlice("ignore", nil, "Fields to skip with --all-custom or --metrics")
	addOutputFlags(reportAuditSubCmd)

	reportPageViewsSubCmd := &cobra.Command{
		Use:   "pageviews",
		Short: "Count page_view events per day",
		Run:   reportCannedCmd(audit.PageViewsByDay),
	}
	reportEventsSubCmd := &cobra.Command{
		Use:   "events",
		Short: "Count every event per day",
		Run:   reportCannedCmd(audit.EventsByDay),
	}
	addOutputFlags(reportPageViewsSubCmd)
	addOutputFlags(reportEventsSubCmd)

	reportCmd.AddCommand(reportRunSubCmd, reportTemplatesSubCmd, reportAuditSubCmd, reportPageViewsSubCmd, reportEventsSubCmd)
}

// addOutputFlags registers the console and sink flags shared by commands
// that produce a result
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("max-rows", 50, "Rows to print (0 prints all)")
	f.Bool("quiet", false, "Do not print the result")
	f.StringP("output", "o", "", "Write to a CSV, TSV or JSON file")
	f.String("format", "", "File format when the extension does not tell: csv, tsv or json")
	f.Bool("no-date-suffix", false, "Do not append the date range to the file name")
	f.Bool("pretty", false, "Indent JSON output")
	f.String("duckdb", "", "Write to a table in this DuckDB file")
	f.String("table", "report", "DuckDB table name")
	f.String("mode", string(export.ModeReplace), "DuckDB write mode: replace or append")
	f.String("sheet-url", "", "Write to this Google Sheets spreadsheet")
	f.String("sheet", "", "Sheet name in the spreadsheet")
	f.Bool("sheet-append", false, "Append rows instead of overwriting the sheet")
	f.String("bq-project", "", "BigQuery project")
	f.String("bq-dataset", "", "BigQuery dataset")
	f.String("bq-table", "", "BigQuery table (created when missing)")
	f.StringSlice("bq-type", nil, "Column type for a new BigQuery table as column=type (string, int, integer, float, double)")
	f.String("save", "", "Save the result in the local cache under this name")
}

// buildSinks creates every sink requested by the output flags. conn may be
// nil when no Google sink is requested
func buildSinks(ctx context.Context, cmd *cobra.Command, conn *session.Connection) ([]results.Sink, error) {
	f := cmd.Flags()
	var sinks []results.Sink

	if path, _ := f.GetString("output"); path != "" {
		format, _ := f.GetString("format")
		sink, err := results.NewFileSink(path, format)
		if err != nil {
			return nil, err
		}
		noSuffix, _ := f.GetBool("no-date-suffix")
		sink.DateSuffix = !noSuffix
		sink.Prettify, _ = f.GetBool("pretty")
		sinks = append(sinks, sink)
	}

	if dbPath, _ := f.GetString("duckdb"); dbPath != "" {
		table, _ := f.GetString("table")
		modeName, _ := f.GetString("mode")
		mode, err := export.ParseMode(modeName)
		if err != nil {
			return nil, err
		}
		sink, err := export.NewTableSink(dbPath, table, mode)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if url, _ := f.GetString("sheet-url"); url != "" {
		if conn == nil {
			return nil, fmt.Errorf("no Google connection for Sheets")
		}
		name, _ := f.GetString("sheet")
		if name == "" {
			return nil, fmt.Errorf("--sheet is required with --sheet-url")
		}
		client, err := sheets.New(ctx, conn.Credentials.HTTPClient(ctx))
		if err != nil {
			return nil, err
		}
		wb, err := client.Open(ctx, url)
		if err != nil {
			return nil, err
		}
		sh, err := wb.Sheet(name)
		if err != nil {
			return nil, fmt.Errorf("%w; sheets: %s", err, strings.Join(wb.SheetNames(), ", "))
		}
		sink := sheets.NewSink(sh)
		sink.Append, _ = f.GetBool("sheet-append")
		sinks = append(sinks, sink)
	}

	if table, _ := f.GetString("bq-table"); table != "" {
		if conn == nil {
			return nil, fmt.Errorf("no Google connection for BigQuery")
		}
		project, _ := f.GetString("bq-project")
		dataset, _ := f.GetString("bq-dataset")
		client, err := bq.New(ctx, conn.Credentials.HTTPClient(ctx), project)
		if err != nil {
			return nil, err
		}
		sink, err := bq.NewSink(client, dataset, table)
		if err != nil {
			return nil, err
		}
		typeSpecs, _ := f.GetStringSlice("bq-type")
		if sink.Types, err = bq.ParseTypes(typeSpecs); err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// emit prints the result, writes it to every requested sink and saves it
func emit(ctx context.Context, cmd *cobra.Command, conn *session.Connection, store *cache.CacheClient, s *session.Session, res *report.Result) {
	f := cmd.Flags()
	if quiet, _ := f.GetBool("quiet"); !quiet {
		opts := results.DefaultDisplayOptions()
		opts.MaxRows, _ = f.GetInt("max-rows")
		if err := results.RenderTable(os.Stdout, res, opts); err != nil {
			fatal("failed to render result", err)
		}
	}
	if res.Partial {
		fmt.Fprintln(os.Stderr, "⚠️  The result is missing rows; see the warnings above")
	}

	sinks, err := buildSinks(ctx, cmd, conn)
	if err != nil {
		fatal("invalid output", err)
	}
	for _, sink := range sinks {
		if err := sink.Write(ctx, res); err != nil {
			fatal("failed to write result", err)
		}
		describeSink(sink)
	}

	if name, _ := f.GetString("save"); name != "" {
		if store == nil {
			fatal("the local cache is disabled; cannot save results", nil)
		}
		saved, err := results.NewManager(store).Save(ctx, name, s.API(), s.Source(), res)
		if err != nil {
			fatal("failed to save result", err)
		}
		fmt.Printf("💾 Saved as %s (%s)\n", saved.Name, saved.ID[:8])
	}
}

func describeSink(sink results.Sink) {
	switch s := sink.(type) {
	case *results.FileSink:
		fmt.Printf("📁 Wrote %s\n", s.Written)
	case *export.TableSink:
		fmt.Printf("🦆 Wrote %d rows to DuckDB table %s\n", s.Last.Rows, s.Last.Table)
	case *sheets.Sink:
		fmt.Printf("📄 Wrote sheet %s\n", s.Sheet.Title)
	case *bq.Sink:
		fmt.Printf("🏗️  Streamed %d rows to %s.%s\n", s.Inserted, s.Dataset, s.Table)
	}
}

func reportRunCmd(cmd *cobra.Command, args []string) {
	f := cmd.Flags()
	var o query.Overrides
	o.Dimensions, _ = f.GetStringSlice("dimensions")
	o.Metrics, _ = f.GetStringSlice("metrics")
	o.DimensionFilter, _ = f.GetString("dimension-filter")
	o.MetricFilter, _ = f.GetString("metric-filter")
	o.Sort, _ = f.GetString("sort")
	o.StartDate, _ = f.GetString("start-date")
	o.EndDate, _ = f.GetString("end-date")
	o.Limit, _ = f.GetInt("limit")
	o.ShowTotal, _ = f.GetBool("total")
	segments, _ := f.GetStringSlice("segments")
	templatePath, _ := f.GetString("template")
	templateName, _ := f.GetString("name")
	saveTemplate, _ := f.GetString("save-template")

	tmpl := &query.QueryTemplate{Name: "adhoc", Segments: segments}
	if templatePath != "" {
		var err error
		if templateName != "" {
			tmpl, err = query.FindTemplate(templatePath, templateName)
		} else {
			var templates []query.QueryTemplate
			templates, err = query.LoadTemplates(templatePath)
			if err == nil && len(templates) != 1 {
				err = fmt.Errorf("%s holds %d templates; pick one with --name", templatePath, len(templates))
			}
			if err == nil {
				tmpl = &templates[0]
			}
		}
		if err != nil {
			fatal("failed to load template", err)
		}
		if len(segments) > 0 {
			tmpl.Segments = segments
		}
	}

	ctx, cancel := commandContext(30 * time.Minute)
	defer cancel()
	s, conn, store, closeFn := openSession(ctx, cmd)
	defer closeFn()

	if s.API() == preset.APIGA4 {
		catalog, err := s.Catalog(ctx, s.Source())
		if err != nil {
			fatal("failed to load metadata", err)
		}
		effective := tmpl.Apply(o)
		if err := effective.ValidateFields(catalog); err != nil {
			fatal("invalid query", err)
		}
	}

	exec, err := query.NewExecutor(s).Execute(ctx, tmpl, o)
	if err != nil {
		fatal("report failed", err)
	}
	fmt.Printf("📊 %d rows for %s in %s\n", exec.Result.Len(), exec.Result.DateRange, exec.Duration.Round(time.Millisecond))

	if saveTemplate != "" {
		if err := query.SaveTemplate(saveTemplate, &exec.Template); err != nil {
			fatal("failed to save template", err)
		}
		fmt.Printf("📝 Template written to %s\n", saveTemplate)
	}
	emit(ctx, cmd, conn, store, s, exec.Result)
}

func reportTemplatesCmd(cmd *cobra.Command, args []string) {
	templates, err := query.LoadTemplates(args[0])
	if err != nil {
		fatal("failed to load templates", err)
	}
	rows := make([][]string, len(templates))
	for i, t := range templates {
		api := t.API
		if api == "" {
			api = "any"
		}
		rows[i] = []string{t.Name, t.Category, api, strings.Join(t.Dimensions, ","), strings.Join(t.Metrics, ","), t.Description}
	}
	printTable(os.Stdout, []string{"Name", "Category", "API", "Dimensions", "Metrics", "Description"}, rows)
}

func reportAuditCmd(cmd *cobra.Command, args []string) {
	f := cmd.Flags()
	dimension, _ := f.GetString("dimension")
	metric, _ := f.GetString("metric")
	since, _ := f.GetString("since")
	allCustom, _ := f.GetBool("all-custom")
	allMetrics, _ := f.GetBool("metrics")
	ignore, _ := f.GetStringSlice("ignore")

	ctx, cancel := commandContext(time.Hour)
	defer cancel()
	s, conn, store, closeFn := openSession(ctx, cmd)
	defer closeFn()
	if since == "" {
		since = auditSince(ctx, conn, s)
	}

	var (
		audits []*audit.Audit
		err    error
	)
	switch {
	case allCustom || allMetrics:
		if s.API() != preset.APIGA4 {
			fatal("--all-custom and --metrics need a ga4 preset", nil)
		}
		catalog, cerr := s.Catalog(ctx, s.Source())
		if cerr != nil {
			fatal("failed to load metadata", cerr)
		}
		if allMetrics {
			audits, err = audit.Metrics(ctx, s, apiNames(catalog.CustomMetrics()), since, ignore)
		} else {
			audits, err = audit.All(ctx, s, apiNames(catalog.CustomDimensions()), metric, since, ignore)
		}
	default:
		var a *audit.Audit
		a, err = audit.Run(ctx, s, dimension, metric, since)
		if a != nil {
			audits = append(audits, a)
		}
	}

	switch len(audits) {
	case 0:
	case 1:
		a := audits[0]
		fmt.Printf("🔎 %s by %s (%s)\n", a.Metric, a.Dimension, a.DateRange)
		emit(ctx, cmd, conn, store, s, a.Result())
	default:
		fmt.Printf("🔎 %d fields audited since %s\n", len(audits), since)
		emit(ctx, cmd, conn, store, s, audit.Combine(audits))
	}
	if err != nil {
		fatal(fmt.Sprintf("audit stopped after %d field(s)", len(audits)), err)
	}
}

// auditSince is the creation day of the selected GA4 property
func auditSince(ctx context.Context, conn *session.Connection, s *session.Session) string {
	if s.API() != preset.APIGA4 {
		return audit.FallbackSince
	}
	prop, err := conn.Admin.GetProperty(ctx, s.Source())
	if err != nil {
		logger.Warn().Err(err).Str("property", s.Source()).Msg("Could not read property creation date")
		return audit.FallbackSince
	}
	return audit.Since(prop.CreateTime)
}

func apiNames(fields []ga4.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.APIName
	}
	return names
}

func reportCannedCmd(run func(context.Context, audit.Runner) (*report.Result, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext(30 * time.Minute)
		defer cancel()
		s, conn, store, closeFn := openSession(ctx, cmd)
		defer closeFn()

		res, err := run(ctx, s)
		if err != nil {
			fatal("report failed", err)
		}
		emit(ctx, cmd, conn, store, s, res)
	}
}
