// Package pipeline runs one lookup batch: resolve identifiers, look each up in
// sequence, normalize, and route records to the enabled sinks while reporting
// progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/asp-search/internal/lookup"
	"github.com/sells-group/asp-search/internal/model"
	"github.com/sells-group/asp-search/internal/normalize"
	"github.com/sells-group/asp-search/internal/progress"
	"github.com/sells-group/asp-search/internal/resolve"
	"github.com/sells-group/asp-search/internal/store"
)

// DefaultFolderPrefix names the timestamped output folder.
const DefaultFolderPrefix = "ASPS_output_"

const stampLayout = "20060102_150405"

// Options is the caller's request for one run.
type Options struct {
	Input     string
	Kind      model.LookupKind
	Sinks     []model.SinkKind
	OutputDir string
	// StorePath, when set, keeps the SQLite store outside the output folder
	// so the same table is reused by later runs.
	StorePath string
}

// StoreOpener opens and reconciles a store.
type StoreOpener func(ctx context.Context, cfg store.Config) (store.Store, *store.ReconcileResult, error)

// Pipeline coordinates runs. Only one run executes at a time.
type Pipeline struct {
	client       lookup.Client
	events       progress.Publisher
	metrics      *Metrics
	storeCfg     store.Config
	openStore    StoreOpener
	folderPrefix string
	metricsPath  string
	now          func() time.Time
	getwd        func() (string, error)

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStoreConfig sets the driver and table names used by the store sink.
func WithStoreConfig(cfg store.Config) Option {
	return func(p *Pipeline) { p.storeCfg = cfg }
}

// WithStoreOpener replaces store.Open.
func WithStoreOpener(fn StoreOpener) Option {
	return func(p *Pipeline) { p.openStore = fn }
}

// WithMetricsTextfile writes the metrics registry to path after every run.
func WithMetricsTextfile(path string) Option {
	return func(p *Pipeline) { p.metricsPath = path }
}

func WithFolderPrefix(prefix string) Option {
	return func(p *Pipeline) {
		if prefix != "" {
			p.folderPrefix = prefix
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline that looks keys up with client and publishes
// progress to events.
func New(client lookup.Client, events progress.Publisher, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:       client,
		events:       events,
		metrics:      NewMetrics(),
		openStore:    store.Open,
		folderPrefix: DefaultFolderPrefix,
		now:          time.Now,
		getwd:        os.Getwd,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.events == nil {
		p.events = progress.Discard{}
	}
	return p
}

// Metrics returns the pipeline's registry.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Run executes one batch and returns its summary. A completion event
// carrying the summary is always published, whether the run completed or
// was aborted.
func (p *Pipeline) Run(ctx context.Context, opts Options) *model.RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &run{
		p:    p,
		ctx:  ctx,
		opts: opts,
		log:  zap.L().With(zap.String("kind", string(opts.Kind)), zap.String("input", opts.Input)),
		sum: &model.RunSummary{
			RunID:     uuid.NewString(),
			State:     model.RunStateIdle,
			Kind:      opts.Kind,
			Input:     opts.Input,
			StartedAt: p.now(),
		},
	}
	r.stamp = r.sum.StartedAt.Format(stampLayout)
	r.execute()
	return r.sum
}

// run is the state of one in-flight batch.
type run struct {
	p     *Pipeline
	ctx   context.Context
	opts  Options
	log   *zap.Logger
	sum   *model.RunSummary
	stamp string
	sinks []*openSink
}

func (r *run) execute() {
	defer r.finish()

	if err := r.validate(); err != nil {
		r.abort(err)
		return
	}

	defer r.closeSinks()
	r.openSinks()
	if len(r.sinks) == 0 {
		r.abort(eris.New("pipeline: no usable sinks"))
		return
	}

	r.sum.State = model.RunStateResolving
	res, err := resolve.Resolve(r.opts.Input)
	if err != nil {
		r.abort(err)
		return
	}

	if res.Empty() {
		r.infof("No identifiers to look up.")
	} else {
		r.infof("Resolved %d unique identifier(s) from %s input.", len(res.Keys), res.Source)
		r.sum.State = model.RunStateLookingUp
		for i, key := range res.Keys {
			r.lookupOne(i, len(res.Keys), key)
		}
	}

	r.sum.State = model.RunStateFinalizing
	r.finalize()
	r.sum.State = model.RunStateComplete
}

func (r *run) validate() error {
	switch r.opts.Kind {
	case model.LookupByID, model.LookupByBundle:
	default:
		return eris.Errorf("pipeline: invalid lookup kind %q", r.opts.Kind)
	}
	if len(r.opts.Sinks) == 0 {
		return eris.New("pipeline: no sinks configured")
	}
	for _, k := range r.opts.Sinks {
		switch k {
		case model.SinkConsole, model.SinkText, model.SinkStore, model.SinkXLSX:
		default:
			return eris.Errorf("pipeline: unknown sink %q", k)
		}
	}
	return nil
}

func (r *run) abort(err error) {
	r.sum.State = model.RunStateAborted
	r.sum.Err = err
	r.log.Error("pipeline: run aborted", zap.Error(err))
}

func (r *run) lookupOne(i, n int, key string) {
	r.infof("Processing ID: %s (%d/%d)", key, i+1, n)

	resp, err := r.p.client.Lookup(r.ctx, key, r.opts.Kind)
	outcome := outcomeFound
	switch {
	case err != nil:
		outcome = outcomeError
		r.log.Warn("pipeline: lookup failed", zap.String("key", key), zap.Error(err))
		r.warnf("%v", err)
	case resp == nil || resp.ResultCount == 0:
		outcome = outcomeNotFound
	}
	r.p.metrics.Lookups.WithLabelValues(outcome).Inc()

	rec := normalize.Normalize(key, r.opts.Kind, resp, err)
	r.sum.Total++
	if rec.Failed() {
		r.sum.Failed++
	} else {
		r.sum.Succeeded++
	}
	r.route(rec)
}

// route hands rec to every enabled sink. A store write failure loses only
// that record; any other sink failure disables the sink for the run.
func (r *run) route(rec model.Record) {
	for _, s := range r.sinks {
		if s.disabled {
			continue
		}
		err := s.sink.WriteRecord(rec)
		if err == nil {
			continue
		}
		var werr *store.WriteError
		if errors.As(err, &werr) {
			r.sum.StoreWriteErrors++
			r.log.Error("pipeline: store write failed", zap.String("key", werr.Key), zap.Error(err))
			r.warnf("Error inserting data for %s: %v", werr.Key, werr.Err)
			continue
		}
		s.disabled = true
		r.log.Error("pipeline: sink disabled", zap.String("sink", string(s.kind)), zap.Error(err))
		r.warnf("Disabling %s output: %v", s.kind, err)
	}
}

func (r *run) finalize() {
	r.sum.EndedAt = r.p.now()
	for _, s := range r.sinks {
		if s.disabled {
			continue
		}
		if err := s.sink.WriteSummary(r.sum); err != nil {
			r.warnf("Could not write run summary to %s output: %v", s.kind, err)
		}
	}
	r.closeSinks()
}

// closeSinks releases every sink exactly once.
func (r *run) closeSinks() {
	for _, s := range r.sinks {
		err := s.sink.Close()
		switch {
		case err != nil:
			r.warnf("Could not close %s output: %v", s.kind, err)
		case s.path != "" && !s.disabled:
			r.sum.Artifacts = append(r.sum.Artifacts, s.path)
			r.infof("%s output saved to %s", s.kind, s.path)
		}
	}
	r.sinks = nil
}

func (r *run) finish() {
	if r.sum.EndedAt.IsZero() {
		r.sum.EndedAt = r.p.now()
	}

	m := r.p.metrics
	m.Runs.WithLabelValues(string(r.sum.State)).Inc()
	m.RunDuration.Set(r.sum.Duration().Seconds())
	if r.p.metricsPath != "" {
		if err := m.WriteTextfile(r.p.metricsPath); err != nil {
			r.log.Warn("pipeline: metrics textfile", zap.Error(err))
			r.warnf("Could not write metrics: %v", err)
		}
	}

	var msg string
	switch {
	case r.sum.State == model.RunStateAborted:
		msg = fmt.Sprintf("Lookup aborted: %v", r.sum.Err)
	case r.sum.OutputDir != "" && !r.sum.ConsoleOnly():
		msg = fmt.Sprintf("Lookup process completed. Output saved to: %s", r.sum.OutputDir)
	case !r.sum.ConsoleOnly():
		msg = fmt.Sprintf("Lookup process completed. Output saved to: %s", r.sum.Artifacts[0])
	default:
		msg = "Lookup process completed. Output was console only."
	}

	r.log.Info("pipeline: run finished",
		zap.String("run_id", r.sum.RunID),
		zap.String("state", string(r.sum.State)),
		zap.Int("total", r.sum.Total),
		zap.Int("failed", r.sum.Failed),
		zap.Duration("duration", r.sum.Duration()),
	)
	r.p.events.Publish(progress.Event{Kind: progress.KindComplete, Message: msg, Summary: r.sum})
}

func (r *run) infof(format string, args ...any) {
	r.p.events.Publish(progress.Event{Kind: progress.KindInfo, Message: fmt.Sprintf(format, args...)})
}

func (r *run) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.sum.Warnings = append(r.sum.Warnings, msg)
	r.p.events.Publish(progress.Event{Kind: progress.KindWarning, Message: msg})
}
