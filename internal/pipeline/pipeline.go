package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/certverify/internal/cache"
	"github.com/ppiankov/certverify/internal/compare"
	"github.com/ppiankov/certverify/internal/llm"
	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/ocr"
	"github.com/ppiankov/certverify/internal/util"
	"github.com/ppiankov/certverify/internal/verdict"
	"github.com/ppiankov/certverify/internal/visual"
	"github.com/ppiankov/certverify/internal/worker"
)

// FieldExtractor turns raw OCR text into a field record
type FieldExtractor interface {
	Extract(ctx context.Context, rawText string) (model.FieldRecord, error)
}

// Options tune the orchestrator
type Options struct {
	KeyMode      model.KeyMode
	StageTimeout time.Duration // Per adapter call; zero disables the deadline
	Parallel     bool          // Run the two documents' OCR and extraction concurrently
	Logger       *slog.Logger
	Now          func() time.Time
}

// Pipeline orchestrates one verification run per call to Verify.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	recognizer   ocr.Recognizer
	extractor    FieldExtractor
	comparer     visual.Comparer
	aggregator   *verdict.Aggregator
	keyMode      model.KeyMode
	stageTimeout time.Duration
	parallel     bool
	log          *slog.Logger
	now          func() time.Time
	provider     llm.Provider
	closers      []io.Closer
}

// New creates a pipeline from its collaborators
func New(recognizer ocr.Recognizer, extractor FieldExtractor, comparer visual.Comparer, aggregator *verdict.Aggregator, opts Options) *Pipeline {
	if aggregator == nil {
		aggregator = verdict.NewAggregator(model.PolicyService, verdict.DefaultThresholds())
	}
	if opts.KeyMode == "" {
		opts.KeyMode = model.KeysFirst
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Pipeline{
		recognizer:   recognizer,
		extractor:    extractor,
		comparer:     comparer,
		aggregator:   aggregator,
		keyMode:      opts.KeyMode,
		stageTimeout: opts.StageTimeout,
		parallel:     opts.Parallel,
		log:          opts.Logger,
		now:          opts.Now,
	}
}

// NewFromConfig wires the HTTP adapters, the extraction provider and the
// optional OCR text layer and cache from configuration
func NewFromConfig(ctx context.Context, cfg *model.Config, log *slog.Logger) (*Pipeline, error) {
	keyMode, err := compare.ParseKeyMode(string(cfg.Compare.Keys))
	if err != nil {
		return nil, err
	}
	policy, err := verdict.ParsePolicy(string(cfg.Verdict.Policy))
	if err != nil {
		return nil, err
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	client := util.NewHTTPClient(cfg.HTTP, limiter)

	var recognizer ocr.Recognizer = ocr.NewClient(cfg.OCR.BaseURL, client, cfg.HTTP.MaxBodyBytes)
	if cfg.OCR.TextLayer {
		recognizer = ocr.NewTextLayerRecognizer(recognizer, log)
	}
	if cfg.Cache.Enabled {
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		recognizer = ocr.NewCachingRecognizer(recognizer, store, cfg.Cache.DiskTTL, log)
	}

	llmConfig := llm.ConfigFromModel(cfg.Extraction)
	llmConfig.HTTPClient = client
	provider, err := llm.NewProvider(ctx, llmConfig)
	if err != nil {
		return nil, fmt.Errorf("extraction provider: %w", err)
	}

	aggregator := verdict.NewAggregator(policy, verdict.Thresholds{
		Embedding: cfg.Verdict.EmbeddingThreshold,
		Keypoint:  cfg.Verdict.KeypointThreshold,
	})

	p := New(
		recognizer,
		llm.NewExtractor(provider),
		visual.NewClient(cfg.Visual.BaseURL, client, cfg.HTTP.MaxBodyBytes),
		aggregator,
		Options{
			KeyMode:      keyMode,
			StageTimeout: cfg.Pipeline.StageTimeout,
			Parallel:     cfg.Pipeline.Parallel,
			Logger:       log,
		},
	)
	p.provider = provider
	if closer, ok := provider.(io.Closer); ok {
		p.closers = append(p.closers, closer)
	}
	return p, nil
}

// Provider returns the extraction provider built by NewFromConfig, or nil
// for pipelines assembled with New
func (p *Pipeline) Provider() llm.Provider {
	return p.provider
}

// Close releases provider clients that hold connections
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Result is everything one run produced. Fields computed before a failure are kept.
type Result struct {
	RunID      string
	State      State
	Err        error
	Statuses   []string
	Documents  [2]model.Document
	RawText    [2]string
	Fields     [2]model.FieldRecord
	Comparison *model.FieldComparison
	Verdict    *model.TamperVerdict
	StartedAt  time.Time
	FinishedAt time.Time
}

// Verify runs the full verification for one request. It always returns a
// Result; the error is the one that ended the run in failed or cancelled.
func (p *Pipeline) Verify(ctx context.Context, req Request, observers ...Observer) (*Result, error) {
	run := newRun(p.log, p.now, observers)
	res := &Result{
		RunID:     run.ID,
		Documents: req.Documents,
		StartedAt: p.now(),
	}

	err := p.execute(ctx, run, req, res)
	if err != nil {
		var validationErr *model.ValidationError
		if ctx.Err() != nil && !errors.As(err, &validationErr) {
			err = fmt.Errorf("verification cancelled: %w", ctx.Err())
			run.end(StateCancelled, err)
		} else {
			run.end(StateFailed, err)
		}
	}

	res.State = run.State()
	res.Err = run.Err()
	res.Statuses = run.Statuses()
	res.FinishedAt = p.now()
	return res, res.Err
}

func (p *Pipeline) execute(ctx context.Context, run *Run, req Request, res *Result) error {
	if err := req.Validate(p.now()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	docs := req.documents()
	res.Documents = docs

	var err error
	if p.parallel {
		err = p.documentsParallel(ctx, run, docs, res)
	} else {
		err = p.documentsSequential(ctx, run, docs, res)
	}
	if err != nil {
		return err
	}

	if err := run.advance(StateComparingText); err != nil {
		return err
	}
	comparison := compare.Fields(res.Fields[0], res.Fields[1], p.keyMode)
	res.Comparison = &comparison

	if err := run.advance(StateVisualCompare); err != nil {
		return err
	}
	visualResult, err := p.compareVisual(ctx, docs)
	if err != nil {
		return err
	}

	if err := run.advance(StateAggregating); err != nil {
		return err
	}
	tamper := p.aggregator.Aggregate(visualResult)
	res.Verdict = &tamper

	return run.advance(StateCompleted)
}

// documentsSequential performs OCR for both documents, then extraction for both
func (p *Pipeline) documentsSequential(ctx context.Context, run *Run, docs [2]model.Document, res *Result) error {
	for i, state := range []State{StateExtractingText1, StateExtractingText2} {
		if err := run.advance(state); err != nil {
			return err
		}
		text, err := p.recognize(ctx, docs[i])
		if err != nil {
			return err
		}
		res.RawText[i] = text
	}

	for i, state := range []State{StateGemini1, StateGemini2} {
		if err := run.advance(state); err != nil {
			return err
		}
		fields, err := p.extract(ctx, res.RawText[i])
		if err != nil {
			return err
		}
		res.Fields[i] = fields
	}
	return nil
}

// documentsParallel runs both OCR calls as one joined phase and both
// extraction calls as a second. States are still emitted in declared order.
func (p *Pipeline) documentsParallel(ctx context.Context, run *Run, docs [2]model.Document, res *Result) error {
	if err := run.advance(StateExtractingText1); err != nil {
		return err
	}
	if err := run.advance(StateExtractingText2); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		g.Go(func() error {
			text, err := p.recognize(gctx, docs[i])
			if err != nil {
				return err
			}
			res.RawText[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := run.advance(StateGemini1); err != nil {
		return err
	}
	if err := run.advance(StateGemini2); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	for i := range docs {
		g.Go(func() error {
			fields, err := p.extract(gctx, res.RawText[i])
			if err != nil {
				return err
			}
			res.Fields[i] = fields
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.stageTimeout)
}

// recognize runs OCR for one document. Zero pages yield the empty string.
func (p *Pipeline) recognize(ctx context.Context, doc model.Document) (string, error) {
	sctx, cancel := p.stageContext(ctx)
	defer cancel()

	result, err := p.recognizer.Recognize(sctx, doc)
	if err != nil {
		var ocrErr *model.OCRError
		if errors.As(err, &ocrErr) {
			return "", ocrErr
		}
		return "", &model.OCRError{Err: err}
	}
	if result == nil {
		return "", nil
	}
	return result.Text(), nil
}

// extract runs field extraction. Empty text is still sent.
func (p *Pipeline) extract(ctx context.Context, rawText string) (model.FieldRecord, error) {
	sctx, cancel := p.stageContext(ctx)
	defer cancel()

	fields, err := p.extractor.Extract(sctx, rawText)
	if err != nil {
		var extractionErr *model.ExtractionError
		if errors.As(err, &extractionErr) {
			return nil, extractionErr
		}
		return nil, &model.ExtractionError{Err: err}
	}
	return fields, nil
}

func (p *Pipeline) compareVisual(ctx context.Context, docs [2]model.Document) (*model.VisualResult, error) {
	sctx, cancel := p.stageContext(ctx)
	defer cancel()

	result, err := p.comparer.Compare(sctx, docs[0], docs[1])
	if err != nil {
		var visualErr *model.VisualComparisonError
		if errors.As(err, &visualErr) {
			return nil, visualErr
		}
		return nil, &model.VisualComparisonError{Err: err}
	}
	return result, nil
}

// Report builds the render-ready report for a finished run
func (r *Result) Report(req Request) *model.Report {
	report := &model.Report{
		RunID:        r.RunID,
		Organization: req.Organization,
		State:        string(r.State),
		Status:       r.Statuses,
		RawText:      r.RawText,
		Fields:       r.Fields,
		Comparison:   r.Comparison,
		Verdict:      r.Verdict,
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.FinishedAt.UTC(),
	}
	if year, err := parseYear(req.Year); err == nil {
		report.Year = year
		report.Legacy = year < r.StartedAt.Year()
	}
	for i, doc := range r.Documents {
		report.Documents[i] = doc.Info()
	}
	if r.Err != nil {
		report.Error = r.Err.Error()
	}
	return report
}
