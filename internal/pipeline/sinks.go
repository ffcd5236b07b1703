package pipeline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sells-group/asp-search/internal/model"
	"github.com/sells-group/asp-search/internal/progress"
	"github.com/sells-group/asp-search/internal/report"
	"github.com/sells-group/asp-search/internal/store"
)

// sink receives every record of one run, then the summary, then Close.
type sink interface {
	WriteRecord(model.Record) error
	WriteSummary(*model.RunSummary) error
	Close() error
}

// openSink is a sink plus its bookkeeping within a run.
type openSink struct {
	kind     model.SinkKind
	path     string
	sink     sink
	disabled bool
}

// consoleSink publishes each record block as a progress event.
type consoleSink struct {
	events progress.Publisher
}

func (c consoleSink) WriteRecord(rec model.Record) error {
	c.events.Publish(progress.Event{
		Kind:    progress.KindRecord,
		Message: report.FormatBlock(rec),
		Record:  &rec,
	})
	return nil
}

func (c consoleSink) WriteSummary(s *model.RunSummary) error {
	c.events.Publish(progress.Event{Kind: progress.KindInfo, Message: report.FormatSummary(s)})
	return nil
}

func (consoleSink) Close() error { return nil }

// storeSink upserts records and writes run metadata on summary.
type storeSink struct {
	ctx     context.Context
	st      store.Store
	metrics *Metrics
}

func (s *storeSink) WriteRecord(rec model.Record) error {
	err := s.st.Put(s.ctx, rec)
	if err != nil {
		s.metrics.StoreWrites.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.StoreWrites.WithLabelValues("ok").Inc()
	return nil
}

func (s *storeSink) WriteSummary(sum *model.RunSummary) error {
	var errs []error
	for _, kv := range runMetadata(sum) {
		if err := s.st.PutMetadata(s.ctx, kv[0], kv[1]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *storeSink) Close() error { return s.st.Close() }

// runMetadata lists the key/value pairs stored for a run. Each key is
// upserted, so only the latest run's values survive.
func runMetadata(s *model.RunSummary) [][2]string {
	return [][2]string{
		{"run_id", s.RunID},
		{"application", model.Application},
		{"version", model.Version},
		{"start_time", s.StartedAt.Format(report.TimeLayout)},
		{"end_time", s.EndedAt.Format(report.TimeLayout)},
		{"duration", s.Duration().Round(time.Millisecond).String()},
		{"lookup_kind", string(s.Kind)},
		{"input_value", s.Input},
		{"total", strconv.Itoa(s.Total)},
		{"succeeded", strconv.Itoa(s.Succeeded)},
		{"failed", strconv.Itoa(s.Failed)},
	}
}
