package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/pipeline"
	"github.com/ppiankov/certverify/internal/report"
	"github.com/ppiankov/certverify/internal/util"
	"github.com/ppiankov/certverify/internal/worker"
)

var (
	year         string
	organization string
	docType      string
	outJSON      string
	outMD        string
	outHTML      string
	timeout      time.Duration
	quiet        bool
	noFooter     bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <file1> <file2>",
	Short: "Verify two certificates against each other",
	Long: `Verify runs one full verification over two certificates:
- Extract text from both documents with the OCR service
- Extract structured fields with the configured language model
- Compare the fields of the two certificates
- Compare profile photo and signature regions with the visual similarity service
- Aggregate a tampering verdict

Certificates may be local files or http(s) URLs (e.g. from 'certverify ingest').
Certificates issued before the current year are legacy and need --type.

Example:
  certverify verify a.pdf b.pdf --year 2025 --org "Example University"
  certverify verify old.jpg scan.jpg --year 2019 --org "Example University" --type scanned
  certverify verify a.pdf b.pdf --year 2025 --org X --json report.json --md report.md --html report.html`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindPipelineFlags(cmd.Flags())
	},
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Request flags
	verifyCmd.Flags().StringVar(&year, "year", "", "year of issue (4 digits)")
	verifyCmd.Flags().StringVar(&organization, "org", "", "issuing organization")
	verifyCmd.Flags().StringVar(&docType, "type", "", "document subtype: scanned or normal (required for legacy certificates)")

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: print JSON to stdout)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path (optional)")
	verifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown and HTML reports")
	verifyCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress to stderr")
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall verification timeout")

	addPipelineFlags(verifyCmd.Flags())
}

// addPipelineFlags registers the flags that override pipeline configuration
func addPipelineFlags(flags *pflag.FlagSet) {
	flags.String("provider", "", "extraction provider (openai, anthropic, ollama, gemini, relay)")
	flags.String("model", "", "extraction model name")
	flags.String("ocr-url", "", "OCR service base URL")
	flags.String("visual-url", "", "visual similarity service base URL")
	flags.String("policy", "", "verdict policy: service or local")
	flags.String("keys", "", "field comparison key set: first, union or intersection")
	flags.Bool("cache", false, "cache OCR results in memory and on disk")
	flags.Bool("sequential", false, "process the two documents one after the other")
}

// bindPipelineFlags binds the pipeline flags of the running command only, so
// commands sharing flag names do not overwrite each other's bindings
func bindPipelineFlags(flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"extraction.provider": "provider",
		"extraction.model":    "model",
		"ocr.base_url":        "ocr-url",
		"visual.base_url":     "visual-url",
		"verdict.policy":      "policy",
		"compare.keys":        "keys",
		"cache.enabled":       "cache",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	if flag := flags.Lookup("sequential"); flag != nil && flag.Changed {
		viper.Set("pipeline.parallel", flag.Value.String() != "true")
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Output.IncludeFooter = cfg.Output.IncludeFooter && !noFooter

	log := newLogger(verbose)
	p, err := pipeline.NewFromConfig(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	loader := newLoader(cfg)
	req := pipeline.Request{Year: year, Organization: organization, Kind: docType}
	for i, source := range args {
		doc, err := loader.Load(ctx, source)
		if err != nil {
			return fmt.Errorf("load certificate %d: %w", i+1, err)
		}
		req.Documents[i] = doc
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s vs %s\n", req.Documents[0].Name, req.Documents[1].Name)
		fmt.Fprintf(os.Stderr, "Provider: %s\n", cfg.Extraction.Provider)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
	}

	var observers []pipeline.Observer
	if !quiet {
		observers = append(observers, progressObserver)
	}

	res, verifyErr := p.Verify(ctx, req, observers...)
	var validationErr *model.ValidationError
	if errors.As(verifyErr, &validationErr) {
		return verifyErr
	}

	rep := res.Report(req)
	renderer := report.NewRenderer(cfg.Output.IncludeFooter)
	if err := writeReports(renderer, rep, outJSON, outMD, outHTML); err != nil {
		return err
	}
	if !quiet {
		renderer.RenderSummary(os.Stderr, rep)
	}

	if verifyErr != nil {
		return fmt.Errorf("verification %s: %w", res.State, verifyErr)
	}
	return nil
}

// progressObserver prints each status line to stderr
func progressObserver(e pipeline.Event) {
	switch {
	case e.Error != "":
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", e.Status, e.Error)
	case e.State == pipeline.StateCompleted:
		fmt.Fprintf(os.Stderr, "✓ %s\n", e.Status)
	default:
		fmt.Fprintf(os.Stderr, "⚙️  %s\n", e.Status)
	}
}

// writeReports renders every requested format. With no JSON path the JSON
// report goes to stdout.
func writeReports(renderer *report.Renderer, rep *model.Report, jsonPath, mdPath, htmlPath string) error {
	if jsonPath == "" {
		if err := renderer.WriteJSON(os.Stdout, rep); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	} else if err := renderer.RenderJSON(rep, jsonPath); err != nil {
		return fmt.Errorf("render JSON: %w", err)
	}
	if mdPath != "" {
		if err := renderer.RenderMarkdown(rep, mdPath); err != nil {
			return fmt.Errorf("render Markdown: %w", err)
		}
	}
	if htmlPath != "" {
		if err := renderer.RenderHTML(rep, htmlPath); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
	}
	return nil
}

// newLoader builds a document loader sharing the configured HTTP settings
func newLoader(cfg *model.Config) *pipeline.Loader {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	return pipeline.NewLoader(util.NewHTTPClient(cfg.HTTP, limiter), cfg.HTTP.MaxBodyBytes)
}
