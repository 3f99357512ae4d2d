// Package statsclient submits today's result at most once per day and reads
// the global aggregate.
package statsclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/stockle/internal/api"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/persist"
)

// ErrStats wraps every stats service failure.
var ErrStats = errors.New("stats unavailable")

// LossResult is the 1-based bucket for a lost or abandoned game.
const LossResult = model.DistributionBuckets

// Backend is the subset of the game service used for stats.
type Backend interface {
	SubmitStats(ctx context.Context, guessCount int, won bool) (api.SubmitResponse, error)
	ReadStats(ctx context.Context) (model.StatsAggregate, error)
}

// Result is what a caller gets back from SubmitOnce.
type Result struct {
	Aggregate  *model.StatsAggregate
	YourResult *int
	Percentile *float64
	// Submitted is true when the call performed the day's submission.
	Submitted bool
}

// Client deduplicates daily submissions.
type Client struct {
	svc     Backend
	records *persist.StatsRecords
	today   func() string
	log     *zap.Logger

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]persist.StatsRecord
}

// New returns a Client.
func New(svc Backend, records *persist.StatsRecords, today func() string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		svc:     svc,
		records: records,
		today:   today,
		log:     log.With(zap.String("component", "statsclient")),
		memo:    map[string]persist.StatsRecord{},
	}
}

// YourResult maps a finished game to its distribution bucket, 1..7.
func YourResult(guessCount int, won bool) int {
	if won {
		return guessCount
	}
	return LossResult
}

// SubmitOnce submits the finished game unless today's result was already
// recorded, in which case it only reads the current aggregate.
func (c *Client) SubmitOnce(ctx context.Context, guessCount int, won bool) (Result, error) {
	if guessCount < 0 || guessCount > model.MaxGuesses || (won && guessCount == 0) {
		return Result{}, fmt.Errorf("%w: invalid guess count %d", ErrStats, guessCount)
	}
	day := c.today()
	if rec, ok := c.recorded(ctx, day); ok {
		return c.read(ctx, rec)
	}

	v, err, _ := c.group.Do(day, func() (any, error) {
		if rec, ok := c.recorded(ctx, day); ok {
			return c.read(ctx, rec)
		}
		resp, err := c.svc.SubmitStats(ctx, guessCount, won)
		if err != nil {
			c.log.Warn("stats submission failed", zap.String("day", day), zap.Error(err))
			return Result{}, fmt.Errorf("%w: failed to submit: %v", ErrStats, err)
		}
		agg := resp.StatsAggregate
		rec := persist.StatsRecord{
			YourResult: YourResult(guessCount, won),
			Percentile: resp.Percentile,
			Aggregate:  &agg,
		}
		c.mu.Lock()
		c.memo[day] = rec
		c.mu.Unlock()
		if err := c.records.Save(ctx, day, rec); err != nil {
			// The in-memory record still blocks resubmission for this process.
			c.log.Warn("stats record not persisted", zap.String("day", day), zap.Error(err))
		}
		res := resultFrom(rec)
		res.Submitted = true
		return res, nil
	})
	res, _ := v.(Result)
	return res, err
}

// Read returns today's aggregate along with any recorded personal result.
func (c *Client) Read(ctx context.Context) (Result, error) {
	rec, ok := c.recorded(ctx, c.today())
	if ok {
		return c.read(ctx, rec)
	}
	agg, err := c.svc.ReadStats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: failed to read: %v", ErrStats, err)
	}
	return Result{Aggregate: &agg}, nil
}

func (c *Client) recorded(ctx context.Context, day string) (persist.StatsRecord, bool) {
	c.mu.Lock()
	rec, ok := c.memo[day]
	c.mu.Unlock()
	if ok {
		return rec, true
	}
	rec, ok = c.records.Load(ctx, day)
	if !ok {
		return persist.StatsRecord{}, false
	}
	c.mu.Lock()
	c.memo[day] = rec
	c.mu.Unlock()
	return rec, true
}

func (c *Client) read(ctx context.Context, rec persist.StatsRecord) (Result, error) {
	res := resultFrom(rec)
	agg, err := c.svc.ReadStats(ctx)
	if err != nil {
		c.log.Warn("stats read failed", zap.Error(err))
		return res, fmt.Errorf("%w: failed to read: %v", ErrStats, err)
	}
	res.Aggregate = &agg
	return res, nil
}

func resultFrom(rec persist.StatsRecord) Result {
	your := rec.YourResult
	res := Result{YourResult: &your, Aggregate: rec.Aggregate}
	if rec.Percentile != nil {
		p := *rec.Percentile
		res.Percentile = &p
	}
	return res
}
