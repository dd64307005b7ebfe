package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemausage"
	"github.com/tordrt/schemausage/internal/annotation"
	"github.com/tordrt/schemausage/internal/config"
	"github.com/tordrt/schemausage/internal/loader"
	"github.com/tordrt/schemausage/internal/logging"
	"github.com/tordrt/schemausage/internal/report"
	"github.com/tordrt/schemausage/internal/rowcount"
	"github.com/tordrt/schemausage/internal/schema"
)

const cookieEnv = "WEBAUTHN_COOKIE"

var (
	outputFile      string
	outputDir       string
	format          string
	logLevel        string
	fkeyAnnotations string
	whitelist       string
	plot            bool

	schemaLocation string
	tables         string

	logPaths  []string
	tableMaps []string
	fkMaps    []string

	server     string
	apiPrefix  string
	catalogID  string
	cookie     string
	countDBURL string
	timeout    time.Duration

	configPath string
	initPath   string
	force      bool
)

var rootCmd = &cobra.Command{
	Use:   "schemausage",
	Short: "Analyze catalog schema annotations and table usage",
	Long: `schemausage loads a catalog schema (ERMrest JSON document or a live PostgreSQL, MySQL or SQLite database),
reports foreign-key, annotation and column distributions, validates annotations, cross-references request logs
and fetches per-table row counts.`,
	SilenceUsage: true,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Report table, foreign-key, annotation and column statistics",
	RunE:  runSummary,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Cross-reference request logs with the schema",
	RunE:  runUsage,
}

var rowcountsCmd = &cobra.Command{
	Use:   "rowcounts",
	Short: "Fetch the row count of every included table",
	RunE:  runRowcounts,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog of a database as a catalog JSON document",
	RunE:  runExport,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every case of a YAML batch file",
	RunE:  runBatch,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a sample batch file",
	RunE:  runInitConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	pf.StringVarP(&outputDir, "output-dir", "d", "", "Output directory for one file per case plus _overview")
	pf.StringVarP(&format, "format", "f", "text", "Output format: text, markdown or json")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&fkeyAnnotations, "fkey-annotations", string(loader.FKAnnotationsLastKey), "Foreign key annotation source: last-key or foreign-key")
	pf.StringVar(&whitelist, "whitelist", string(annotation.WhitelistHistorical), "Annotation whitelist: historical or corrected")
	pf.BoolVar(&plot, "plot", false, "Draw histogram bars in text output")

	for _, cmd := range []*cobra.Command{summaryCmd, usageCmd, rowcountsCmd, exportCmd} {
		cmd.Flags().StringVarP(&schemaLocation, "schema", "s", "", "Catalog JSON file or database URL (postgres://, mysql://, sqlite://)")
		cmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific schema:table ids to extract from a database (comma-separated, optional)")
		_ = cmd.MarkFlagRequired("schema")
	}

	usageCmd.Flags().StringArrayVarP(&logPaths, "log", "l", nil, "CSV request log (repeatable)")
	usageCmd.Flags().StringArrayVar(&tableMaps, "table-map", nil, "Rename a logged table: old_schema:old_table=schema:table (repeatable)")
	usageCmd.Flags().StringArrayVar(&fkMaps, "fk-map", nil, "Rename a logged foreign key: schema:old_name=schema:name (repeatable)")
	_ = usageCmd.MarkFlagRequired("log")

	rowcountsCmd.Flags().StringVar(&server, "server", "", "ERMrest server host")
	rowcountsCmd.Flags().StringVar(&apiPrefix, "api", rowcount.DefaultAPI, "ERMrest API path prefix")
	rowcountsCmd.Flags().StringVar(&catalogID, "catalog", "", "ERMrest catalog id")
	rowcountsCmd.Flags().StringVar(&cookie, "cookie", "", "webauthn cookie value (default: $"+cookieEnv+")")
	rowcountsCmd.Flags().StringVar(&countDBURL, "count-db-url", "", "Database URL to count rows with instead of ERMrest")
	rowcountsCmd.Flags().DurationVar(&timeout, "timeout", rowcount.DefaultTimeout, "Timeout per count request")

	runCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Batch file")

	initConfigCmd.Flags().StringVar(&initPath, "path", config.DefaultPath, "Where to write the sample batch file")
	initConfigCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	rootCmd.AddCommand(summaryCmd, usageCmd, rowcountsCmd, exportCmd, runCmd, initConfigCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	return runSingleCase(cmd.Context(), config.Case{Name: schemaLocation, Schema: schemaLocation})
}

func runUsage(cmd *cobra.Command, args []string) error {
	tableMap, err := parseMappings(tableMaps, validateTableID)
	if err != nil {
		return fmt.Errorf("invalid --table-map: %w", err)
	}
	fkMap, err := parseMappings(fkMaps, validateConstraintName)
	if err != nil {
		return fmt.Errorf("invalid --fk-map: %w", err)
	}

	return runSingleCase(cmd.Context(), config.Case{
		Name:     schemaLocation,
		Schema:   schemaLocation,
		Logs:     logPaths,
		TableMap: tableMap,
		FKMap:    fkMap,
	})
}

func runRowcounts(cmd *cobra.Command, args []string) error {
	rc := rowCountConfig()
	if !rc.Enabled() {
		return fmt.Errorf("one of --server or --count-db-url must be specified")
	}
	if rc.Server != "" && rc.CountDBURL != "" {
		return fmt.Errorf("only one of --server or --count-db-url can be specified")
	}
	if rc.Server != "" && rc.Catalog == "" {
		return fmt.Errorf("--catalog is required with --server")
	}

	return runSingleCase(cmd.Context(), config.Case{
		Name:     schemaLocation,
		Schema:   schemaLocation,
		RowCount: &rc,
	})
}

func rowCountConfig() config.RowCountConfig {
	c := cookie
	if c == "" {
		c = os.Getenv(cookieEnv)
	}
	return config.RowCountConfig{
		Server:     server,
		API:        apiPrefix,
		Catalog:    catalogID,
		Cookie:     c,
		CountDBURL: countDBURL,
		Timeout:    timeout,
	}
}

func runSingleCase(ctx context.Context, c config.Case) error {
	if err := validateOutputFlags(); err != nil {
		return err
	}

	fk, err := loader.ParseForeignKeyAnnotationSource(fkeyAnnotations)
	if err != nil {
		return err
	}
	variant, err := annotation.ParseWhitelistVariant(whitelist)
	if err != nil {
		return err
	}
	opts := loader.DefaultOptions()
	opts.ForeignKeyAnnotations = fk
	opts.Whitelist = annotation.WhitelistFor(variant)

	logger, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rc, err := schemausage.AnalyzeCase(ctx, c, &schemausage.Options{
		Loader: &opts,
		Logger: logger,
		Tables: parseTableList(tables),
	})
	if rc == nil {
		return fmt.Errorf("failed to analyze %s: %w", c.Schema, err)
	}

	// a failed row-count batch still reports the rest of the case
	if werr := writeReport(&report.Report{Cases: []*report.Case{rc}}, outputFile, outputDir, format, plot); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", c.Schema, err)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// explicit flags win over the batch file
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("output") {
		cfg.Output.Path = outputFile
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("plot") {
		cfg.Output.Plot = plot
	}
	if flags.Changed("fkey-annotations") {
		cfg.Analysis.ForeignKeyAnnotations = fkeyAnnotations
	}
	if flags.Changed("whitelist") {
		cfg.Analysis.Whitelist = whitelist
	}

	if cfg.Output.Path != "" && cfg.Output.Dir != "" {
		return fmt.Errorf("cannot use both an output file and an output directory")
	}

	opts, err := cfg.LoaderOptions()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	r := &report.Report{}
	var failed int
	for _, c := range cfg.Cases {
		rc, err := schemausage.AnalyzeCase(cmd.Context(), c, &schemausage.Options{Loader: &opts, Logger: logger})
		if err != nil {
			failed++
			logger.Error("Case failed", zap.String("case", c.Name), zap.Error(err))
		}
		if rc != nil {
			r.Cases = append(r.Cases, rc)
		}
	}

	if err := writeReport(r, cfg.Output.Path, cfg.Output.Dir, cfg.Output.Format, cfg.Output.Plot); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(cfg.Cases))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if outputDir != "" {
		return fmt.Errorf("export writes a single document, use --output")
	}

	catalog, err := schemausage.LoadCatalog(cmd.Context(), schemaLocation, parseTableList(tables))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", schemaLocation, err)
	}

	if outputFile != "" {
		return catalog.WriteFile(outputFile)
	}
	return catalog.Encode(cmd.OutOrStdout())
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initPath)
	}
	if err := config.Sample().Save(initPath); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", initPath)
	return nil
}

func validateOutputFlags() error {
	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	return nil
}

func writeReport(r *report.Report, file, dir, format string, plot bool) error {
	// Multi-file output
	if dir != "" {
		if err := schemausage.FormatReport(r, &schemausage.OutputOptions{OutputDir: dir, Format: format, Plot: plot}); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	// Single-file output
	var writer io.Writer = os.Stdout
	if file != "" {
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	if err := schemausage.FormatReport(r, &schemausage.OutputOptions{Writer: writer, Format: format, Plot: plot}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

// parseTableList splits a comma-separated table list
func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	list := strings.Split(s, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

// parseMappings reads old=new pairs, checking both sides with validate
func parseMappings(pairs []string, validate func(string) error) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("%q is not an old=new pair", pair)
		}
		if err := validate(from); err != nil {
			return nil, err
		}
		if err := validate(to); err != nil {
			return nil, err
		}
		out[from] = to
	}
	return out, nil
}

func validateTableID(id string) error {
	if s, t, ok := schema.SplitTableID(id); !ok || s == "" || t == "" {
		return fmt.Errorf("invalid table id %q (expected schema:table)", id)
	}
	return nil
}

func validateConstraintName(name string) error {
	_, err := schema.ParseConstraintName(name)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
