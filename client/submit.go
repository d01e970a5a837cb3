package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/otherjamesbrown/reelkit/config"
	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
)

// Instrumented wraps a Submitter with retries, tracing, metrics and
// error classification. Errors it returns are *rkerrors.ExportError.
type Instrumented struct {
	next    Submitter
	retry   RetryPolicy
	metrics *observability.EditorMetrics
	tracer  *observability.Tracer
	logger  logging.Logger
}

// InstrumentOptions configures Instrument. Nil fields are skipped or defaulted.
type InstrumentOptions struct {
	Retry   *RetryPolicy
	Metrics *observability.EditorMetrics
	Tracer  *observability.Tracer
	Logger  logging.Logger
}

// Instrument wraps next.
func Instrument(next Submitter, opts InstrumentOptions) *Instrumented {
	i := &Instrumented{
		next:    next,
		retry:   DefaultRetryPolicy(),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		logger:  opts.Logger,
	}
	if opts.Retry != nil {
		i.retry = *opts.Retry
	}
	if i.tracer == nil {
		i.tracer = observability.NewTracer()
	}
	if i.logger == nil {
		i.logger = logging.NewNopLogger()
	}
	i.logger = i.logger.With(logging.Component("render_submitter"), logging.F("transport", next.Transport()))
	return i
}

// Transport implements Submitter.
func (i *Instrumented) Transport() string { return i.next.Transport() }

// Submit implements Submitter. Only retryable classified errors are retried.
func (i *Instrumented) Submit(ctx context.Context, req *Request) (*Submission, error) {
	ctx, span := i.tracer.StartSubmitSpan(ctx, i.Transport())
	defer span.End()
	helper := observability.NewSpanHelper(span)
	if req != nil && req.Document != nil {
		helper.SetDocument(len(req.Document.Layers), cueCount(req))
	}

	start := time.Now()
	attempts := 0
	var sub *Submission
	err := i.retry.Do(ctx, func() error {
		attempts++
		var err error
		sub, err = i.next.Submit(ctx, req)
		if err != nil {
			i.logger.Warn("Render submission attempt failed", logging.Err(err), logging.F("attempt", attempts))
		}
		return err
	}, func(err error) bool {
		return rkerrors.IsErrorRetryable(rkerrors.ClassifyError(err, "submit"))
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		ee := rkerrors.ClassifyError(err, "submit")
		helper.SetError(ee, string(ee.Code), rkerrors.IsRetryable(ee.Code))
		if i.metrics != nil {
			i.metrics.RecordSubmission(i.Transport(), observability.StatusFailed, elapsed)
		}
		i.logger.Error("Render submission failed", logging.Err(err), logging.F("code", string(ee.Code)), logging.F("attempts", attempts))
		return nil, ee
	}

	helper.SetJobID(sub.JobID)
	helper.SetSuccess()
	if i.metrics != nil {
		i.metrics.RecordSubmission(i.Transport(), observability.StatusSuccess, elapsed)
	}
	i.logger.Info("Reel submitted", logging.F("job_id", sub.JobID), logging.F("attempts", attempts))
	return sub, nil
}

func cueCount(req *Request) int {
	for _, e := range req.Document.Layers {
		if len(e.Subtitles) > 0 {
			return len(e.Subtitles)
		}
	}
	return 0
}

// Health is implemented by both transports.
type Health interface {
	CheckHealth(ctx context.Context) (*HealthStatus, error)
}

// Closer releases a submitter's connection.
type Closer func() error

// NewSubmitter builds the transport selected by cfg.
func NewSubmitter(ctx context.Context, cfg *config.CLIConfig, apiKey string) (Submitter, Health, Closer, error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		var tlsConfig *tls.Config
		if !cfg.Insecure && cfg.TLS.Enabled {
			c, err := LoadClientTLSConfig(&cfg.TLS)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("loading TLS config: %w", err)
			}
			tlsConfig = c
		}
		s := NewHTTPSubmitter(cfg.RenderURL, HTTPOptions{Timeout: cfg.Timeout, APIKey: apiKey, TLSConfig: tlsConfig})
		return s, s, func() error { return nil }, nil
	case config.TransportGRPC, "":
		c, err := ConnectFromConfig(ctx, cfg, apiKey)
		if err != nil {
			return nil, nil, nil, err
		}
		return NewGRPCSubmitter(c), c, c.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
