package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gareport/internal/bq"
	"gareport/internal/cache"
	"gareport/internal/results"
	"gareport/internal/session"
	"gareport/internal/sheets"
)

func initResultCommands() {
	resultsListSubCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved results",
		Run:   resultsListCmd,
	}
	resultsListSubCmd.Flags().String("source", "", "Only results of this property or view")
	resultsListSubCmd.Flags().Int("limit", 20, "Maximum results to list (0 lists all)")

	resultsShowSubCmd := &cobra.Command{
		Use:   "show [id-or-name]",
		Short: "Print a saved result",
		Args:  cobra.ExactArgs(1),
		Run:   resultsShowCmd,
	}
	resultsShowSubCmd.Flags().Int("max-rows", 50, "Rows to print (0 prints all)")

	resultsExportSubCmd := &cobra.Command{
		Use:   "export [id-or-name]",
		Short: "Write a saved result to a file, DuckDB, Sheets or BigQuery",
		Args:  cobra.ExactArgs(1),
		Run:   resultsExportCmd,
	}
	addOutputFlags(resultsExportSubCmd)

	resultsDeleteSubCmd := &cobra.Command{
		Use:   "delete [id-or-name]",
		Short: "Delete a saved result",
		Args:  cobra.ExactArgs(1),
		Run:   resultsDeleteCmd,
	}
	resultsDeleteSubCmd.Flags().Bool("yes", false, "Do not ask for confirmation")

	resultsCmd.AddCommand(resultsListSubCmd, resultsShowSubCmd, resultsExportSubCmd, resultsDeleteSubCmd)

	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache statistics",
			Run:   cacheStatsCmd,
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove expired cache entries",
			Run:   cacheCleanupCmd,
		},
	)
}

func initStorageCommands() {
	sheetsReadSubCmd := &cobra.Command{
		Use:   "read [url]",
		Short: "Print a sheet, or list the sheets of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		Run:   sheetsReadCmd,
	}
	sheetsReadSubCmd.Flags().String("sheet", "", "Sheet to read; lists sheets when empty")
	sheetsReadSubCmd.Flags().String("cell", "", "Read a single cell given as row,col (1-based)")
	sheetsCmd.AddCommand(sheetsReadSubCmd)

	bqDatasetsSubCmd := &cobra.Command{
		Use:   "datasets",
		Short: "List datasets of a project",
		Run:   bqDatasetsCmd,
	}
	bqDatasetsSubCmd.Flags().String("project", "", "Google Cloud project (required)")
	bqDatasetsSubCmd.MarkFlagRequired("project")

	bqTablesSubCmd := &cobra.Command{
		Use:   "tables [dataset]",
		Short: "List tables of a dataset",
		Args:  cobra.ExactArgs(1),
		Run:   bqTablesCmd,
	}
	bqTablesSubCmd.Flags().String("project", "", "Google Cloud project (required)")
	bqTablesSubCmd.MarkFlagRequired("project")

	bqCmd.AddCommand(bqDatasetsSubCmd, bqTablesSubCmd)
}

// openStore opens the current preset's cache, which also holds saved results
func openStore(cmd *cobra.Command) (*cache.CacheClient, string) {
	loadConfig(cmd)
	p := currentPreset(cmd)
	c, err := cache.NewCacheClient(p.Name)
	if err != nil {
		fatal("failed to open cache", err)
	}
	return c, p.Name
}

func resultsListCmd(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	store, presetName := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(30 * time.Second)
	defer cancel()

	saved, err := results.NewManager(store).ListResults(ctx, source, limit)
	if err != nil {
		fatal("failed to list results", err)
	}
	if len(saved) == 0 {
		fmt.Printf("❌ No saved results for preset %s\n", presetName)
		fmt.Println("💡 Save one with 'gareport report run ... --save <name>'")
		return
	}

	rows := make([][]string, len(saved))
	for i, r := range saved {
		partial := ""
		if r.Partial {
			partial = "⚠️"
		}
		rows[i] = []string{r.ID[:8], r.Name, r.Provider, r.Source, r.StartDate + " → " + r.EndDate, strconv.Itoa(r.RowCount), partial, formatTime(r.CreatedAt)}
	}
	printTable(os.Stdout, []string{"ID", "Name", "API", "Source", "Dates", "Rows", "Partial", "Saved"}, rows)
}

func resultsShowCmd(cmd *cobra.Command, args []string) {
	opts := results.DefaultDisplayOptions()
	opts.MaxRows, _ = cmd.Flags().GetInt("max-rows")

	store, _ := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(30 * time.Second)
	defer cancel()

	if err := results.NewManager(store).Show(ctx, os.Stdout, args[0], opts); err != nil {
		fatal("failed to show result", err)
	}
}

func resultsExportCmd(cmd *cobra.Command, args []string) {
	store, _ := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(15 * time.Minute)
	defer cancel()

	var conn *session.Connection
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	bqTable, _ := cmd.Flags().GetString("bq-table")
	if sheetURL != "" || bqTable != "" {
		conn = connect(ctx, cmd)
	}

	sinks, err := buildSinks(ctx, cmd, conn)
	if err != nil {
		fatal("invalid output", err)
	}
	if len(sinks) == 0 {
		fatal("no output given; use --output, --duckdb, --sheet-url or --bq-table", nil)
	}

	manager := results.NewManager(store)
	for _, sink := range sinks {
		if err := manager.Export(ctx, args[0], sink); err != nil {
			fatal("failed to export result", err)
		}
		describeSink(sink)
	}
}

func resultsDeleteCmd(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(fmt.Sprintf("Delete saved result '%s'?", args[0])) {
		fmt.Println("❌ Deletion cancelled")
		return
	}

	store, _ := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(30 * time.Second)
	defer cancel()

	if err := results.NewManager(store).Delete(ctx, args[0]); err != nil {
		fatal("failed to delete result", err)
	}
	fmt.Printf("✅ Deleted %s\n", args[0])
}

func cacheStatsCmd(cmd *cobra.Command, args []string) {
	store, presetName := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(30 * time.Second)
	defer cancel()

	stats, err := store.GetCacheStats(ctx)
	if err != nil {
		fatal("failed to get cache stats", err)
	}

	fmt.Println("💾 Cache Statistics:")
	fmt.Printf("🎯 Preset: %s\n", presetName)
	fmt.Printf("📁 File: %s\n", store.Path())
	fmt.Printf("✅ Cache Hits: %d\n", stats.TotalHits)
	fmt.Printf("❌ Cache Misses: %d\n", stats.TotalMisses)
	fmt.Printf("📊 Hit Rate: %.1f%%\n", stats.HitRate)
	fmt.Printf("📝 Cache Entries: %d\n", stats.EntriesCount)
	fmt.Printf("💾 Saved Results: %d\n", stats.SavedResults)
	fmt.Printf("📅 Created: %s\n", formatTime(stats.CreatedAt))
	fmt.Printf("🔄 Last Updated: %s\n", formatTime(stats.UpdatedAt))
	if stats.LastCleanup != nil {
		fmt.Printf("🧹 Last Cleanup: %s\n", formatTime(*stats.LastCleanup))
	}
}

func cacheCleanupCmd(cmd *cobra.Command, args []string) {
	store, _ := openStore(cmd)
	defer store.Close()
	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()

	fmt.Println("🧹 Cleaning up cache...")
	deleted, err := store.CleanupExpiredEntries(ctx)
	if err != nil {
		fatal("cleanup failed", err)
	}
	fmt.Printf("✅ Cleaned up %d expired cache entries\n", deleted)
}

func sheetsReadCmd(cmd *cobra.Command, args []string) {
	sheetName, _ := cmd.Flags().GetString("sheet")
	cell, _ := cmd.Flags().GetString("cell")

	ctx, cancel := commandContext(2 * time.Minute)
	defer cancel()
	conn := connect(ctx, cmd)

	client, err := sheets.New(ctx, conn.Credentials.HTTPClient(ctx))
	if err != nil {
		fatal("failed to create Sheets client", err)
	}
	wb, err := client.Open(ctx, args[0])
	if err != nil {
		fatal("failed to open spreadsheet", err)
	}

	if sheetName == "" {
		fmt.Printf("📗 %s\n", wb.Title)
		for _, name := range wb.SheetNames() {
			fmt.Printf("   📄 %s\n", name)
		}
		return
	}
	sh, err := wb.Sheet(sheetName)
	if err != nil {
		fatal("failed to select sheet", err)
	}

	if cell != "" {
		row, col, err := parseCell(cell)
		if err != nil {
			fatal("invalid --cell", err)
		}
		v, err := sh.Cell(ctx, row, col)
		if err != nil {
			fatal("failed to read cell", err)
		}
		fmt.Println(v)
		return
	}

	values, err := sh.Values(ctx)
	if err != nil {
		fatal("failed to read sheet", err)
	}
	if len(values) == 0 {
		fmt.Println("❌ The sheet is empty")
		return
	}
	printTable(os.Stdout, values[0], padRows(values[1:], len(values[0])))
}

func bqDatasetsCmd(cmd *cobra.Command, args []string) {
	project, _ := cmd.Flags().GetString("project")
	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	client := bigQueryClient(ctx, cmd, project)

	datasets, err := client.Datasets(ctx)
	if err != nil {
		fatal("failed to list datasets", err)
	}
	for _, d := range datasets {
		fmt.Printf("🗂️  %s\n", d)
	}
}

func bqTablesCmd(cmd *cobra.Command, args []string) {
	project, _ := cmd.Flags().GetString("project")
	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()
	client := bigQueryClient(ctx, cmd, project)

	tables, err := client.Tables(ctx, args[0])
	if err != nil {
		fatal("failed to list tables", err)
	}
	for _, t := range tables {
		fmt.Printf("📋 %s.%s\n", args[0], t)
	}
}

func bigQueryClient(ctx context.Context, cmd *cobra.Command, project string) *bq.Client {
	conn := connect(ctx, cmd)
	client, err := bq.New(ctx, conn.Credentials.HTTPClient(ctx), project)
	if err != nil {
		fatal("failed to create BigQuery client", err)
	}
	return client
}

func parseCell(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected row,col, got %q", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid row: %w", err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid column: %w", err)
	}
	return row, col, nil
}

// padRows fills short rows so every row has width cells
func padRows(rows [][]string, width int) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}
