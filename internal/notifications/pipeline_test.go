package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/skyvibes/internal/devices"
	"github.com/albapepper/skyvibes/internal/geocode"
	"github.com/albapepper/skyvibes/internal/weather"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeSource struct {
	records []devices.Record
	err     error
}

func (f *fakeSource) FetchAll(context.Context) ([]devices.Record, error) {
	return f.records, f.err
}

// fakeResolver names every location after its latitude, or the placeholder
// when coordinates are missing.
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, lat, lon *float64) geocode.Location {
	if lat == nil || lon == nil {
		return geocode.Location{Latitude: 28.61, Longitude: 77.20, PlaceName: geocode.PlaceholderName}
	}
	return geocode.Location{Latitude: *lat, Longitude: *lon, PlaceName: fmt.Sprintf("Lat%.0f", *lat)}
}

type fakeWeather struct {
	mu       sync.Mutex
	calls    int
	snap     weather.Snapshot
	failAt   map[float64]bool
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeWeather) Snapshot(ctx context.Context, lat, _ float64) (weather.Snapshot, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return weather.Snapshot{}, ctx.Err()
		}
	}
	if f.failAt[lat] {
		return weather.Snapshot{}, fmt.Errorf("%w: status 500", weather.ErrUnavailable)
	}
	return f.snap, nil
}

type fakeSender struct {
	batches [][]Message
	err     error
}

func (f *fakeSender) Send(_ context.Context, msgs []Message) (*SendResult, error) {
	f.batches = append(f.batches, msgs)
	if f.err != nil {
		return nil, f.err
	}
	return &SendResult{Delivered: len(msgs)}, nil
}

func at(hour int) func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 1, hour, 30, 0, 0, time.UTC) }
}

func newTestPipeline(src DeviceSource, wf WeatherFetcher, s Sender, opts Options) *Pipeline {
	opts.Location = time.UTC
	if opts.Now == nil {
		opts.Now = at(10)
	}
	if opts.Rand == nil {
		opts.Rand = &seqRand{seq: []int{2}}
	}
	return NewPipeline(src, fakeResolver{}, wf, s, opts, nil)
}

func located(token string, lat float64) devices.Record {
	return devices.Record{Token: token, Latitude: devices.Float(lat), Longitude: devices.Float(10)}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRun_SingleDeviceWithoutCoordinates(t *testing.T) {
	src := &fakeSource{records: []devices.Record{{Token: "A"}}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 40, Code: 0}}
	sender := &fakeSender{}

	result, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.batches, 1)
	batch := sender.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "A", batch[0].To)
	assert.Equal(t, "default", batch[0].Sound)
	assert.Equal(t, "📍 Your location Weather Update", batch[0].Title)
	assert.Equal(t, "🌅 Good morning from Your location: Sun's out, no excuses to stay in bed (but we support it).", batch[0].Body)
	assert.Equal(t, "A", batch[1].To)
	assert.Equal(t, "🌀 Thought of the Hour", batch[1].Title)
	assert.Contains(t, Thoughts, batch[1].Body)

	assert.Equal(t, BucketMorning, result.Bucket)
	assert.Equal(t, 1, result.Devices)
	assert.Equal(t, 2, result.Delivered)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_MessagesFollowDeviceOrder(t *testing.T) {
	records := []devices.Record{located("A", 1), located("B", 2), located("C", 3), located("D", 4)}
	src := &fakeSource{records: records}
	// Vary latency so completion order differs from device order.
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 3}, delay: 5 * time.Millisecond}
	sender := &fakeSender{}

	_, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.batches, 1)
	batch := sender.batches[0]
	require.Len(t, batch, 2*len(records))
	for i, rec := range records {
		assert.Equal(t, rec.Token, batch[2*i].To)
		assert.Equal(t, rec.Token, batch[2*i+1].To)
		assert.Equal(t, WeatherTitle(fmt.Sprintf("Lat%d", i+1)), batch[2*i].Title)
		assert.Equal(t, thoughtTitle, batch[2*i+1].Title)
	}
}

func TestRun_SameBucketForEveryDevice(t *testing.T) {
	src := &fakeSource{records: []devices.Record{located("A", 1), located("B", 2)}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}}
	sender := &fakeSender{}

	calls := 0
	now := func() time.Time {
		calls++
		return time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	}
	result, err := newTestPipeline(src, wf, sender, Options{Now: now}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, BucketAfternoon, result.Bucket)
	for _, m := range sender.batches[0] {
		if m.Title != thoughtTitle {
			assert.Contains(t, m.Body, "☀️ Afternoon in")
		}
	}
}

func TestRun_HourReadInConfiguredZone(t *testing.T) {
	src := &fakeSource{records: []devices.Record{{Token: "A"}}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}}
	sender := &fakeSender{}

	kolkata := time.FixedZone("IST", 5*3600+1800)
	opts := Options{
		Location: kolkata,
		Now:      func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) },
		Rand:     &seqRand{seq: []int{0}},
	}
	// 08:00 UTC is 13:30 IST.
	result, err := NewPipeline(src, fakeResolver{}, wf, sender, opts, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BucketAfternoon, result.Bucket)
}

func TestRun_WeatherFailureAbortsRun(t *testing.T) {
	src := &fakeSource{records: []devices.Record{located("A", 1), located("B", 2), located("C", 3)}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}, failAt: map[float64]bool{2: true}}
	sender := &fakeSender{}

	_, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWeatherUnavailable)
	assert.ErrorIs(t, err, weather.ErrUnavailable)

	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 1, de.Index)
	assert.Equal(t, "B", de.Token)

	assert.Empty(t, sender.batches, "nothing is sent when a device fails")
}

func TestRun_IsolateFailuresSkipsDevice(t *testing.T) {
	src := &fakeSource{records: []devices.Record{located("A", 1), located("B", 2), located("C", 3)}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}, failAt: map[float64]bool{2: true}}
	sender := &fakeSender{}

	result, err := newTestPipeline(src, wf, sender, Options{IsolateFailures: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.ErrorIs(t, result.Failed[0], ErrWeatherUnavailable)

	require.Len(t, sender.batches, 1)
	batch := sender.batches[0]
	require.Len(t, batch, 4)
	assert.Equal(t, []string{"A", "A", "C", "C"}, []string{batch[0].To, batch[1].To, batch[2].To, batch[3].To})
}

func TestRun_IsolateFailuresAllFailedSendsNothing(t *testing.T) {
	src := &fakeSource{records: []devices.Record{located("A", 1)}}
	wf := &fakeWeather{failAt: map[float64]bool{1: true}}
	sender := &fakeSender{}

	result, err := newTestPipeline(src, wf, sender, Options{IsolateFailures: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Failed, 1)
	assert.Empty(t, result.Messages)
	assert.Empty(t, sender.batches)
}

func TestRun_StoreFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	wf := &fakeWeather{}
	sender := &fakeSender{}

	_, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, wf.calls)
	assert.Empty(t, sender.batches)
}

func TestRun_NoDevicesSendsNothing(t *testing.T) {
	src := &fakeSource{}
	wf := &fakeWeather{}
	sender := &fakeSender{}

	result, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Devices)
	assert.Empty(t, result.Messages)
	assert.Empty(t, sender.batches)
}

func TestRun_DispatchFailure(t *testing.T) {
	src := &fakeSource{records: []devices.Record{{Token: "A"}}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}}
	sender := &fakeSender{err: errors.New("relay returned 502")}

	result, err := newTestPipeline(src, wf, sender, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Len(t, result.Messages, 2)
	assert.Len(t, sender.batches, 1)
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	var records []devices.Record
	for i := range 8 {
		records = append(records, located(fmt.Sprintf("T%d", i), float64(i)))
	}
	src := &fakeSource{records: records}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}, delay: 10 * time.Millisecond}
	sender := &fakeSender{}

	_, err := newTestPipeline(src, wf, sender, Options{Concurrency: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, wf.maxSeen.Load(), int32(2))
	assert.Equal(t, 8, wf.calls)
	assert.Len(t, sender.batches[0], 16)
}

func TestRun_ThoughtsDrawnInDeviceOrder(t *testing.T) {
	src := &fakeSource{records: []devices.Record{located("A", 1), located("B", 2), located("C", 3)}}
	wf := &fakeWeather{snap: weather.Snapshot{TemperatureC: 20, Code: 2}}
	sender := &fakeSender{}

	opts := Options{Rand: &seqRand{seq: []int{0, 1, 2}}}
	_, err := newTestPipeline(src, wf, sender, opts).Run(context.Background())
	require.NoError(t, err)

	batch := sender.batches[0]
	assert.Equal(t, Thoughts[0], batch[1].Body)
	assert.Equal(t, Thoughts[1], batch[3].Body)
	assert.Equal(t, Thoughts[2], batch[5].Body)
}

func TestResultSummary(t *testing.T) {
	r := &Result{RunID: "abc", Bucket: BucketNight, Devices: 2, Messages: make([]Message, 4), Delivered: 3, Rejected: 1}
	assert.Equal(t, "run=abc bucket=night devices=2 messages=4 failed=0 delivered=3 rejected=1", r.Summary())
}
