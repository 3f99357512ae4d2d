package statsclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/verte-zerg/stockle/internal/api"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/persist"
	"github.com/verte-zerg/stockle/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	submits   atomic.Int32
	reads     atomic.Int32
	delay     time.Duration
	submitErr error
	readErr   error
}

func (f *fakeBackend) SubmitStats(ctx context.Context, guessCount int, won bool) (api.SubmitResponse, error) {
	f.submits.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.submitErr != nil {
		return api.SubmitResponse{}, f.submitErr
	}
	p := 40.0
	return api.SubmitResponse{
		StatsAggregate: model.StatsAggregate{Distribution: []int{0, 1, 1, 0, 0, 0, 0}, TotalPlays: 2, Average: 2.5},
		Percentile:     &p,
	}, nil
}

func (f *fakeBackend) ReadStats(ctx context.Context) (model.StatsAggregate, error) {
	f.reads.Add(1)
	if f.readErr != nil {
		return model.StatsAggregate{}, f.readErr
	}
	return model.StatsAggregate{Distribution: []int{0, 1, 2, 0, 0, 0, 0}, TotalPlays: 3, Average: 2.67}, nil
}

func today() string { return "2026-10-19" }

func newClient(kv store.KV, b Backend) *Client {
	return New(b, persist.NewStatsRecords(kv, nil), today, nil)
}

func TestSubmitOnceThenRead(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	c := newClient(store.NewMemoryStore(), b)

	res, err := c.SubmitOnce(ctx, 3, true)
	require.NoError(t, err)
	require.True(t, res.Submitted)
	require.Equal(t, 3, *res.YourResult)
	require.InDelta(t, 40.0, *res.Percentile, 1e-9)
	require.Equal(t, 2, res.Aggregate.TotalPlays)

	res, err = c.SubmitOnce(ctx, 3, true)
	require.NoError(t, err)
	require.False(t, res.Submitted)
	require.Equal(t, 3, *res.YourResult)
	require.Equal(t, 3, res.Aggregate.TotalPlays)

	require.EqualValues(t, 1, b.submits.Load())
	require.EqualValues(t, 1, b.reads.Load())
}

func TestPersistedRecordSurvivesNewClient(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	b := &fakeBackend{}

	_, err := newClient(kv, b).SubmitOnce(ctx, 0, false)
	require.NoError(t, err)

	res, err := newClient(kv, b).SubmitOnce(ctx, 0, false)
	require.NoError(t, err)
	require.Equal(t, LossResult, *res.YourResult)
	require.EqualValues(t, 1, b.submits.Load())
}

func TestConcurrentCallsSubmitOnce(t *testing.T) {
	b := &fakeBackend{delay: 20 * time.Millisecond}
	c := newClient(store.NewMemoryStore(), b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.SubmitOnce(context.Background(), 4, true)
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			if res.YourResult == nil || *res.YourResult != 4 {
				t.Errorf("unexpected yourResult: %v", res.YourResult)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, b.submits.Load())
}

func TestLegacyRecordTriggersSubmission(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, persist.StatsKey(today()), []byte("true")))
	b := &fakeBackend{}

	res, err := newClient(kv, b).SubmitOnce(ctx, 2, true)
	require.NoError(t, err)
	require.True(t, res.Submitted)
	require.EqualValues(t, 1, b.submits.Load())
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{submitErr: errors.New("boom")}
	c := newClient(store.NewMemoryStore(), b)

	_, err := c.SubmitOnce(ctx, 5, true)
	require.ErrorIs(t, err, ErrStats)

	b.submitErr = nil
	res, err := c.SubmitOnce(ctx, 5, true)
	require.NoError(t, err)
	require.True(t, res.Submitted)
	require.EqualValues(t, 2, b.submits.Load())
}

func TestReadFailureKeepsCachedResult(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	c := newClient(store.NewMemoryStore(), b)
	_, err := c.SubmitOnce(ctx, 1, true)
	require.NoError(t, err)

	b.readErr = errors.New("down")
	res, err := c.SubmitOnce(ctx, 1, true)
	require.ErrorIs(t, err, ErrStats)
	require.Equal(t, 1, *res.YourResult)
	require.NotNil(t, res.Aggregate)
	require.Equal(t, 2, res.Aggregate.TotalPlays)
}

func TestInvalidGuessCount(t *testing.T) {
	c := newClient(store.NewMemoryStore(), &fakeBackend{})
	_, err := c.SubmitOnce(context.Background(), 0, true)
	require.ErrorIs(t, err, ErrStats)
	_, err = c.SubmitOnce(context.Background(), 7, false)
	require.ErrorIs(t, err, ErrStats)
}

func TestReadWithoutRecord(t *testing.T) {
	b := &fakeBackend{}
	res, err := newClient(store.NewMemoryStore(), b).Read(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.YourResult)
	require.Equal(t, 3, res.Aggregate.TotalPlays)
}
