package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/pool"
	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/token"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage names used for pools and status reporting.
const (
	StagePreprocess = "preprocess"
	StageExtract    = "extract"
	StageAggregate  = "aggregate"
	StageValidate   = "validate"
	StageGenerate   = "generate"
)

// Config configures the pipeline coordinator.
type Config struct {
	// PreprocessConcurrency bounds concurrent image preparation.
	PreprocessConcurrency int `yaml:"preprocess_concurrency"`

	// ExtractConcurrency bounds concurrent model calls, kept low to respect
	// provider rate limits.
	ExtractConcurrency int `yaml:"extract_concurrency"`

	// AdaptiveExtraction lets the extraction pool shrink and grow its limit
	// with the rolling error rate.
	AdaptiveExtraction bool `yaml:"adaptive_extraction"`

	// TaskTimeout is the per-task deadline.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// Breaker configures the per-dependency circuit breakers.
	Breaker errors.CircuitBreakerConfig `yaml:"breaker"`

	// RetryPolicies overrides the default per-kind retry behavior.
	RetryPolicies map[errors.Kind]*errors.RetryPolicy `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		PreprocessConcurrency: 8,
		ExtractConcurrency:    2,
		TaskTimeout:           2 * time.Minute,
		Breaker:               errors.DefaultCircuitBreakerConfig(),
	}
}

// Coordinator owns task and result lifecycles for pipeline runs. Stage
// agents are injected by interface and hold no cross-call state; the only
// shared mutable state is the pool counters and breaker state, both
// internally synchronized.
type Coordinator struct {
	config   Config
	registry *token.Registry
	router   *TaskRouter
	retry    *errors.RetryExecutor
	logger   *slog.Logger

	preprocessor Preprocessor
	extractor    Extractor
	aggregator   Aggregator
	validator    Validator
	generator    Generator

	pools map[string]*pool.AgentPool

	breakerMu sync.Mutex
	breakers  map[string]*errors.CircuitBreaker
}

// New creates a coordinator wiring the five stage agents together.
func New(
	cfg Config,
	registry *token.Registry,
	preprocessor Preprocessor,
	extractor Extractor,
	aggregator Aggregator,
	validator Validator,
	generator Generator,
) *Coordinator {
	defaults := DefaultConfig()
	if cfg.PreprocessConcurrency <= 0 {
		cfg.PreprocessConcurrency = defaults.PreprocessConcurrency
	}
	if cfg.ExtractConcurrency <= 0 {
		cfg.ExtractConcurrency = defaults.ExtractConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker = defaults.Breaker
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	extractPoolCfg := pool.DefaultConfig(StageExtract, cfg.ExtractConcurrency)
	extractPoolCfg.Adaptive = cfg.AdaptiveExtraction

	return &Coordinator{
		config:       cfg,
		registry:     registry,
		router:       NewTaskRouter(registry),
		retry:        errors.NewRetryExecutor(cfg.RetryPolicies),
		logger:       cfg.Logger,
		preprocessor: preprocessor,
		extractor:    extractor,
		aggregator:   aggregator,
		validator:    validator,
		generator:    generator,
		pools: map[string]*pool.AgentPool{
			StagePreprocess: pool.New(pool.DefaultConfig(StagePreprocess, cfg.PreprocessConcurrency)),
			StageExtract:    pool.New(extractPoolCfg),
			StageAggregate:  pool.New(pool.DefaultConfig(StageAggregate, 1)),
			StageValidate:   pool.New(pool.DefaultConfig(StageValidate, 1)),
			StageGenerate:   pool.New(pool.DefaultConfig(StageGenerate, 2)),
		},
		breakers: make(map[string]*errors.CircuitBreaker),
	}
}

// collector gathers task errors from concurrent stage work.
type collector struct {
	mu     sync.Mutex
	errors []token.TaskError
}

func (c *collector) add(taskID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, token.TaskError{
		TaskID:  taskID,
		Kind:    errors.GetKind(err).String(),
		Message: err.Error(),
	})
}

// preparedImage pairs a normalized image with the task that produced it.
type preparedImage struct {
	task token.ExtractionTask
	img  *preprocess.PreparedImage
}

// RunExtraction is the pipeline entry point: it fans preprocessing out over
// all images, routes and fans out extraction sub-tasks, then aggregates,
// validates, and generates. Task-level failures are isolated and reported
// in the result; only malformed top-level input raises. Otherwise the
// caller always receives a PipelineResult, even when every task failed.
func (c *Coordinator) RunExtraction(ctx context.Context, images []token.ImageReference, categories []token.Category, formats []string) (*token.PipelineResult, error) {
	if len(images) == 0 {
		return nil, errors.New(errors.KindValidation, "no images provided", nil)
	}
	if len(categories) == 0 {
		return nil, errors.New(errors.KindValidation, "no categories requested", nil)
	}
	for _, category := range categories {
		if _, ok := c.registry.Get(category); !ok {
			return nil, errors.New(errors.KindValidation, "category "+string(category)+" is not registered", nil)
		}
	}

	sessionID := uuid.NewString()
	var errs collector

	c.logger.Info("pipeline run starting",
		"session_id", sessionID,
		"images", len(images),
		"categories", len(categories))

	prepared := c.runPreprocess(ctx, sessionID, images, categories, &errs)
	groups := c.runExtract(ctx, prepared, &errs)
	aggregated := c.runAggregate(ctx, sessionID, groups, &errs)
	validated := c.runValidate(ctx, aggregated)
	outputs := c.runGenerate(ctx, validated, formats, &errs)

	result := &token.PipelineResult{
		SessionID:        sessionID,
		Tokens:           validated,
		GeneratedOutputs: outputs,
		Errors:           errs.errors,
		PartialSuccess:   len(errs.errors) > 0 && len(validated) > 0,
	}

	c.logger.Info("pipeline run finished",
		"session_id", sessionID,
		"tokens", len(result.Tokens),
		"errors", len(result.Errors),
		"partial_success", result.PartialSuccess)

	return result, nil
}

// runPreprocess fans preprocessing out over all images under the stage
// pool. A failed image is recorded and excluded; its siblings continue.
func (c *Coordinator) runPreprocess(ctx context.Context, sessionID string, images []token.ImageReference, categories []token.Category, errs *collector) []preparedImage {
	results := make([]*preparedImage, len(images))

	var g errgroup.Group
	for i, ref := range images {
		task := token.ExtractionTask{
			ID:         sessionID + "/image-" + uuid.NewString()[:8],
			Image:      ref,
			Categories: append([]token.Category(nil), categories...),
			Priority:   token.PriorityNormal,
			Timeout:    c.config.TaskTimeout,
		}

		g.Go(func() error {
			err := c.pools[StagePreprocess].Execute(ctx, func(ctx context.Context) error {
				taskCtx, cancel := context.WithTimeout(ctx, task.Timeout)
				defer cancel()

				attempt := task
				return c.retry.Execute(taskCtx, func() error {
					img, err := c.preprocessor.Process(taskCtx, attempt.Image)
					if err != nil {
						attempt = attempt.Retried()
						return err
					}
					results[i] = &preparedImage{task: task, img: img}
					return nil
				})
			})
			if err != nil {
				errs.add(task.ID, normalizeTimeout(err))
				c.logger.Warn("image preparation failed", "task_id", task.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	prepared := make([]preparedImage, 0, len(images))
	for _, r := range results {
		if r != nil {
			prepared = append(prepared, *r)
		}
	}
	return prepared
}

// runExtract routes each prepared image into per-dependency sub-tasks and
// fans them out under the extraction pool, gated by the dependency's
// circuit breaker. Each successful sub-task contributes one candidate
// group. The group wait is the stage barrier: aggregation never starts
// while any sub-task is in flight.
func (c *Coordinator) runExtract(ctx context.Context, prepared []preparedImage, errs *collector) [][]token.Candidate {
	var (
		mu     sync.Mutex
		groups [][]token.Candidate
	)

	var g errgroup.Group
	for _, p := range prepared {
		subTasks, err := c.router.Route(p.task)
		if err != nil {
			errs.add(p.task.ID, err)
			continue
		}

		for _, sub := range subTasks {
			img := p.img
			g.Go(func() error {
				candidates, err := c.extractSubTask(ctx, sub, img, errs)
				if err != nil {
					errs.add(sub.ID, err)
					c.logger.Warn("extraction sub-task failed", "task_id", sub.ID, "error", err)
					return nil
				}
				if len(candidates) > 0 {
					mu.Lock()
					groups = append(groups, candidates)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return groups
}

// extractSubTask runs one extraction sub-task: breaker admission first, so
// an open circuit fails fast without consuming a pool slot, then pooled
// execution with per-kind retry. Per-category parse failures are recorded
// but do not fail the surviving categories.
func (c *Coordinator) extractSubTask(ctx context.Context, sub token.ExtractionTask, img *preprocess.PreparedImage, errs *collector) ([]token.Candidate, error) {
	group, err := c.router.GroupOf(sub.Categories[0])
	if err != nil {
		return nil, err
	}

	breaker := c.breakerFor(group)
	if !breaker.Allow() {
		return nil, errors.New(errors.KindCircuitOpen,
			"dependency "+group+" is unavailable", nil).WithTaskID(sub.ID)
	}

	var candidates []token.Candidate
	err = c.pools[StageExtract].Execute(ctx, func(ctx context.Context) error {
		taskCtx, cancel := context.WithTimeout(ctx, sub.Timeout)
		defer cancel()

		attempt := sub
		return c.retry.Execute(taskCtx, func() error {
			got, catErrs, err := c.extractor.Extract(taskCtx, img, attempt.Categories)
			if err != nil {
				attempt = attempt.Retried()
				return err
			}
			for category, cerr := range catErrs {
				errs.add(attempt.ID+"/"+string(category), cerr)
			}
			candidates = got
			return nil
		})
	})

	breaker.RecordResult(err == nil)
	if err != nil {
		return nil, normalizeTimeout(err)
	}
	return candidates, nil
}

// runAggregate merges all candidate groups once every extraction sub-task
// has settled.
func (c *Coordinator) runAggregate(ctx context.Context, sessionID string, groups [][]token.Candidate, errs *collector) []token.Aggregated {
	var aggregated []token.Aggregated
	err := c.pools[StageAggregate].Execute(ctx, func(ctx context.Context) error {
		var err error
		aggregated, err = c.aggregator.Aggregate(groups)
		return err
	})
	if err != nil {
		errs.add(sessionID+"/aggregate", err)
		return nil
	}
	return aggregated
}

// runValidate annotates the aggregated set. Validation never fails on bad
// token data, it only marks tokens invalid.
func (c *Coordinator) runValidate(ctx context.Context, aggregated []token.Aggregated) []token.Validated {
	var validated []token.Validated
	_ = c.pools[StageValidate].Execute(ctx, func(ctx context.Context) error {
		validated = c.validator.Validate(aggregated)
		return nil
	})
	return validated
}

// runGenerate renders each requested format. An unsupported format is
// recorded and never affects the other formats.
func (c *Coordinator) runGenerate(ctx context.Context, validated []token.Validated, formats []string, errs *collector) map[string]string {
	if len(formats) == 0 {
		return nil
	}

	outputs := make(map[string]string, len(formats))
	for _, format := range formats {
		err := c.pools[StageGenerate].Execute(ctx, func(ctx context.Context) error {
			text, err := c.generator.Generate(validated, format)
			if err != nil {
				return err
			}
			outputs[format] = text
			return nil
		})
		if err != nil {
			errs.add("generate/"+format, err)
		}
	}
	return outputs
}

// breakerFor returns the circuit breaker guarding a dependency group,
// creating it on first use.
func (c *Coordinator) breakerFor(group string) *errors.CircuitBreaker {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	if breaker, ok := c.breakers[group]; ok {
		return breaker
	}
	breaker := errors.NewCircuitBreaker(group, c.config.Breaker)
	c.breakers[group] = breaker
	return breaker
}

// normalizeTimeout maps a bare context deadline error onto the timeout
// kind so it selects the right retry policy and error report.
func normalizeTimeout(err error) error {
	if err == context.DeadlineExceeded {
		return errors.New(errors.KindTimeout, "task deadline exceeded", err)
	}
	return err
}
