package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/skyvibes/internal/devices"
	"github.com/albapepper/skyvibes/internal/geocode"
	"github.com/albapepper/skyvibes/internal/metrics"
	"github.com/albapepper/skyvibes/internal/weather"
)

// DeviceSource loads every registered device.
type DeviceSource interface {
	FetchAll(ctx context.Context) ([]devices.Record, error)
}

// LocationResolver turns optional device coordinates into a location. It
// must not fail.
type LocationResolver interface {
	Resolve(ctx context.Context, lat, lon *float64) geocode.Location
}

// WeatherFetcher returns current conditions at a point.
type WeatherFetcher interface {
	Snapshot(ctx context.Context, lat, lon float64) (weather.Snapshot, error)
}

// Sender submits one batch of messages to the push relay.
type Sender interface {
	Send(ctx context.Context, msgs []Message) (*SendResult, error)
}

// Options controls run policy.
type Options struct {
	// IsolateFailures skips devices whose weather lookup fails instead of
	// aborting the whole run.
	IsolateFailures bool
	// Concurrency caps in-flight devices; 0 means unbounded.
	Concurrency int
	// Location is the zone the wall-clock hour is read in. Nil means Local.
	Location *time.Location
	// Now and Rand are injectable for tests.
	Now  func() time.Time
	Rand RandomSource
}

// Result describes a completed run.
type Result struct {
	RunID     string
	Bucket    TimeBucket
	Devices   int
	Messages  []Message
	Failed    []*DeviceError
	Delivered int
	Rejected  int
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf("run=%s bucket=%s devices=%d messages=%d failed=%d delivered=%d rejected=%d",
		r.RunID, r.Bucket, r.Devices, len(r.Messages), len(r.Failed), r.Delivered, r.Rejected)
}

// Pipeline wires the collaborators of a notification run. All fields are
// read-only after construction, so one Pipeline can serve concurrent runs.
type Pipeline struct {
	devices  DeviceSource
	resolver LocationResolver
	weather  WeatherFetcher
	sender   Sender
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. Zero-valued options fall back to the
// wall clock, the local zone and the global random source.
func NewPipeline(src DeviceSource, res LocationResolver, wf WeatherFetcher, s Sender, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Rand == nil {
		opts.Rand = DefaultRandom
	}
	return &Pipeline{
		devices:  src,
		resolver: res,
		weather:  wf,
		sender:   s,
		opts:     opts,
		logger:   logger,
	}
}

// outcome is the per-device result of the fan-out stage.
type outcome struct {
	location geocode.Location
	snapshot weather.Snapshot
}

// Run performs one pass: load → resolve/fetch (concurrent) → compose →
// dispatch. Without IsolateFailures the first device failure cancels the
// rest and nothing is sent.
func (p *Pipeline) Run(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	result = &Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", result.RunID)

	defer func() {
		label := "success"
		switch {
		case errors.Is(err, ErrStoreUnavailable):
			label = "store_unavailable"
		case errors.Is(err, ErrWeatherUnavailable):
			label = "weather_unavailable"
		case errors.Is(err, ErrDispatchFailed):
			label = "dispatch_failed"
		case err != nil:
			label = "error"
		}
		metrics.PipelineRunsTotal.WithLabelValues(label).Inc()
	}()

	// 1. Load devices
	records, err := p.devices.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to load devices", "error", err)
		return result, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	result.Devices = len(records)

	// 2. Time bucket, shared by every device in the run
	now := p.opts.Now().In(p.opts.Location)
	result.Bucket = BucketForHour(now.Hour())
	logger.Info("Weather notification run started",
		"devices", len(records), "hour", now.Hour(), "bucket", result.Bucket,
		"isolate_failures", p.opts.IsolateFailures, "concurrency", p.opts.Concurrency)

	// 3. Fan out: resolve + fetch per device, gathered by index
	outcomes, failed, err := p.gather(ctx, records)
	if err != nil {
		logger.Error("Run aborted", "error", err)
		return result, err
	}
	result.Failed = failed
	for _, f := range failed {
		logger.Warn("Skipping device", "index", f.Index, "token", redactToken(f.Token), "error", f.Err)
	}

	// 4. Compose and flatten in device order
	msgs := make([]Message, 0, 2*len(records))
	for i, rec := range records {
		o := outcomes[i]
		if o == nil {
			continue
		}
		thought := RandomThought(p.opts.Rand)
		msgs = append(msgs, Compose(rec.Token, o.location.PlaceName, o.snapshot, result.Bucket, thought)...)
	}
	result.Messages = msgs

	if len(msgs) == 0 {
		logger.Info("No messages to send", "devices", len(records))
		return result, nil
	}

	// 5. Dispatch as one batch
	sent, err := p.sender.Send(ctx, msgs)
	if err != nil {
		logger.Error("Dispatch failed", "messages", len(msgs), "error", err)
		return result, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	result.Delivered = sent.Delivered
	result.Rejected = sent.Rejected

	logger.Info("Weather notification run finished",
		"summary", result.Summary(),
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// gather runs the per-device stage concurrently. Outcomes are indexed like
// records; a nil entry marks a skipped device.
func (p *Pipeline) gather(ctx context.Context, records []devices.Record) ([]*outcome, []*DeviceError, error) {
	outcomes := make([]*outcome, len(records))
	deviceErrs := make([]*DeviceError, len(records))

	g, gctx := errgroup.WithContext(ctx)
	if p.opts.Concurrency > 0 {
		g.SetLimit(p.opts.Concurrency)
	}
	// Isolated failures must not cancel siblings.
	workCtx := gctx
	if p.opts.IsolateFailures {
		workCtx = ctx
	}

	for i, rec := range records {
		g.Go(func() error {
			o, err := p.processDevice(workCtx, rec)
			if err != nil {
				de := &DeviceError{Index: i, Token: rec.Token, Err: err}
				if p.opts.IsolateFailures {
					deviceErrs[i] = de
					return nil
				}
				return de
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var failed []*DeviceError
	for _, de := range deviceErrs {
		if de != nil {
			failed = append(failed, de)
		}
	}
	return outcomes, failed, nil
}

func (p *Pipeline) processDevice(ctx context.Context, rec devices.Record) (*outcome, error) {
	loc := p.resolver.Resolve(ctx, rec.Latitude, rec.Longitude)

	snap, err := p.weather.Snapshot(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}
	return &outcome{location: loc, snapshot: snap}, nil
}
