package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/database"
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/service"
	"github.com/snpedia-variant-pipeline/pkg/external"
	"github.com/snpedia-variant-pipeline/pkg/genome"
)

const enqueueBatchSize = 500

// pageFlags are the local page files shared by extract and risk
type pageFlags struct {
	variantID    string
	htmlPath     string
	wikitextPath string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.variantID, "id", "", "variant id the page belongs to, e.g. rs1801133")
	cmd.Flags().StringVar(&p.htmlPath, "html", "", "path to the rendered page HTML")
	cmd.Flags().StringVar(&p.wikitextPath, "wikitext", "", "path to the page wikitext")
}

func (p *pageFlags) given() bool {
	return p.htmlPath != "" || p.wikitextPath != ""
}

func (p *pageFlags) input() (domain.ExtractionInput, error) {
	input := domain.ExtractionInput{VariantID: p.variantID}
	if !p.given() {
		return input, errors.New("at least one of --html or --wikitext is required")
	}
	if p.htmlPath != "" {
		data, err := os.ReadFile(p.htmlPath)
		if err != nil {
			return input, fmt.Errorf("reading html: %w", err)
		}
		input.HTML = string(data)
	}
	if p.wikitextPath != "" {
		data, err := os.ReadFile(p.wikitextPath)
		if err != nil {
			return input, fmt.Errorf("reading wikitext: %w", err)
		}
		input.Wikitext = string(data)
	}
	return input, nil
}

func newExtractCmd(opts *RootOptions) *cobra.Command {
	var page pageFlags
	var includeRaw bool

	cmd := &cobra.Command{
		Use:     "extract",
		Short:   "Extract a normalized record from local page files",
		Example: `  snpedia extract --id rs1801133 --html rs1801133.html --wikitext rs1801133.wiki`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := page.input()
			if err != nil {
				return err
			}
			record := service.NewExtractionService(opts.logger()).Extract(input)
			if !includeRaw {
				record.RawContent = nil
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	page.register(cmd)
	cmd.Flags().BoolVar(&includeRaw, "raw", false, "include the raw inputs in the record")
	return cmd
}

type riskOutput struct {
	VariantID      string                        `json:"variant_id"`
	Gene           string                        `json:"gene,omitempty"`
	Risks          []domain.GenotypeRisk         `json:"risks"`
	Interpretation *domain.InterpretationRequest `json:"interpretation,omitempty"`
}

func newRiskCmd(opts *RootOptions) *cobra.Command {
	var page pageFlags
	var genotype string

	cmd := &cobra.Command{
		Use:   "risk [variant-id]",
		Short: "Classify a variant's genotypes into risk tiers",
		Long: `Classify each genotype of a variant as HIGH (magnitude >= 3), MEDIUM (>= 2)
or LOW. The variant is read from local page files when --html or --wikitext
is given, otherwise from the local database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			var record *domain.NormalizedVariantRecord
			switch {
			case page.given():
				if page.variantID == "" && len(args) == 1 {
					page.variantID = args[0]
				}
				input, err := page.input()
				if err != nil {
					return err
				}
				record = service.NewExtractionService(opts.logger()).Extract(input)
			case len(args) == 1:
				id := domain.CanonicalVariantID(args[0])
				if id == "" {
					return domain.NewValidationError("variant-id", "expected an rs or i identifier", args[0])
				}
				env, err := opts.openLite()
				if err != nil {
					return err
				}
				defer env.Close()
				record, err = env.store.Get(ctx, id)
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("%s is not in the local database; run ingest and sync first", id)
				}
				if err != nil {
					return err
				}
			default:
				return errors.New("a variant id or --html/--wikitext is required")
			}

			out := riskOutput{
				VariantID: record.ID,
				Gene:      record.Gene,
				Risks:     service.ClassifyRisk(record),
			}
			if genotype != "" {
				out.Interpretation = service.BuildInterpretationRequest(record, genotype)
			}

			if opts.OutputFormat != "table" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			return printRiskTable(cmd.OutOrStdout(), out)
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&genotype, "genotype", "", "your genotype, e.g. (C;T) or CT")
	return cmd
}

func printRiskTable(w io.Writer, out riskOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GENOTYPE\tMAGNITUDE\tRISK\tSUMMARY")
	for _, r := range out.Risks {
		marker := ""
		if out.Interpretation != nil && out.Interpretation.UserMatch != nil && out.Interpretation.UserMatch.Genotype == r.Genotype {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%.1f\t%s\t%s\n", r.Genotype, marker, r.Magnitude, r.RiskLevel, r.Summary)
	}
	return tw.Flush()
}

// Finding is one report call matched against a stored variant
type Finding struct {
	VariantID string           `json:"variant_id"`
	Gene      string           `json:"gene,omitempty"`
	Genotype  string           `json:"genotype"`
	Magnitude float64          `json:"magnitude"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	Summary   string           `json:"summary,omitempty"`
}

type reportOutput struct {
	Format   genome.Format `json:"format"`
	Calls    int           `json:"calls"`
	Stored   int           `json:"stored"`
	Findings []Finding     `json:"findings"`
}

func newReportCmd(opts *RootOptions) *cobra.Command {
	var minMagnitude float64

	cmd := &cobra.Command{
		Use:   "report <genome-file>",
		Short: "Match a 23andMe or VCF genotype report against stored variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			report, err := parseReportFile(args[0])
			if err != nil {
				return err
			}
			env, err := opts.openLite()
			if err != nil {
				return err
			}
			defer env.Close()

			out := reportOutput{Format: report.Format, Calls: len(report.Calls), Findings: []Finding{}}
			for _, call := range report.Calls {
				record, err := env.store.Get(ctx, call.VariantID)
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				out.Stored++

				match := genome.MatchCall(record, call)
				if match == nil || match.Magnitude < minMagnitude {
					continue
				}
				out.Findings = append(out.Findings, Finding{
					VariantID: record.ID,
					Gene:      record.Gene,
					Genotype:  match.Genotype,
					Magnitude: match.Magnitude,
					RiskLevel: service.ClassifyMagnitude(match.Magnitude),
					Summary:   match.Summary,
				})
			}
			sort.SliceStable(out.Findings, func(i, j int) bool {
				return out.Findings[i].Magnitude > out.Findings[j].Magnitude
			})

			if opts.OutputFormat != "table" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIANT\tGENE\tGENOTYPE\tMAGNITUDE\tRISK\tSUMMARY")
			for _, f := range out.Findings {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\t%s\n", f.VariantID, f.Gene, f.Genotype, f.Magnitude, f.RiskLevel, f.Summary)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&minMagnitude, "min-magnitude", 0, "hide findings below this magnitude")
	return cmd
}

func newIngestCmd(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ingest <genome-file>",
		Short: "Queue every variant in a 23andMe or VCF genotype report for fetching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			report, err := parseReportFile(args[0])
			if err != nil {
				return err
			}
			ids := report.VariantIDs()
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}

			env, err := opts.openLite()
			if err != nil {
				return err
			}
			defer env.Close()

			for start := 0; start < len(ids); start += enqueueBatchSize {
				end := min(start+enqueueBatchSize, len(ids))
				if err := env.queue.Enqueue(ctx, ids[start:end]...); err != nil {
					return err
				}
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"format":  report.Format,
				"calls":   len(report.Calls),
				"skipped": report.Skipped,
				"queued":  len(ids),
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "queue at most this many variants (0 for all)")
	return cmd
}

func newSyncCmd(opts *RootOptions, deps Dependencies) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch queued variants from SNPedia into the local database",
		Long: `Fetch queued variants from SNPedia, extract them and store the records.
Without --watch the queue is drained once; with --watch workers keep polling
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			env, err := opts.openLite()
			if err != nil {
				return err
			}
			defer env.Close()

			fetcher := deps.Fetcher
			if fetcher == nil {
				cache := external.NewMemoryPageCache(env.cfg.CacheMaxItems, env.cfg.CacheTTL)
				fetcher = external.NewSNPediaClient(env.cfg.SNPediaConfig(), cache, env.logger)
			}
			enricher := deps.Enricher
			if enricher == nil {
				enricher = external.NewPubMedClient(env.cfg.PubMedConfig(), env.logger)
			}

			syncer := service.NewSyncService(fetcher, service.NewExtractionService(env.logger), enricher,
				env.store, env.queue, env.cfg.QueueConfig(), env.logger)

			if watch {
				return syncer.Run(ctx)
			}
			processed, err := syncer.Drain(ctx)
			if err != nil {
				return err
			}
			stats, err := env.queue.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"processed": processed,
				"queue":     stats,
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling the queue until interrupted")
	return cmd
}

func newStatusCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored variant and fetch queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			env, err := opts.openLite()
			if err != nil {
				return err
			}
			defer env.Close()

			count, err := env.store.Count(ctx)
			if err != nil {
				return err
			}
			stats, err := env.queue.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"database": env.cfg.DBPath(),
				"variants": count,
				"queue":    stats,
			})
		},
	}
}

func newExportCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every stored record as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			env, err := opts.openLite()
			if err != nil {
				return err
			}
			defer env.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := env.store.Export(ctx, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records\n", n)
			return nil
		},
	}
}

func newMigrateCmd(opts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		ValidArgs: []string{"up", "down"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			manager, err := config.NewManagerFromFile(configPath)
			if err != nil {
				return err
			}
			logger := opts.logger()
			runner, err := database.NewMigrationRunner(manager.GetDatabaseURL(), manager.GetDatabaseConfig().MigrationsPath, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			if len(args) == 1 && args[0] == "down" {
				err = runner.Down(ctx)
			} else {
				err = runner.Up(ctx)
			}
			if err != nil {
				return err
			}

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: config.yaml in the usual search paths)")
	return cmd
}

func parseReportFile(path string) (*genome.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening genotype report: %w", err)
	}
	defer f.Close()
	return genome.ParseReport(f)
}
