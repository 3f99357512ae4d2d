package stats

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/statsclient"
)

// StatsReader reads today's aggregate and any recorded personal result.
type StatsReader interface {
	Read(ctx context.Context) (statsclient.Result, error)
}

// ChartSource fetches the answer's price history.
type ChartSource interface {
	Chart(ctx context.Context, rng string) ([]model.ChartPoint, error)
}

// Report contains precomputed data for stats rendering. Either half may be
// missing; its error says why.
type Report struct {
	Result   statsclient.Result
	StatsErr error
	Range    Range
	Points   []model.ChartPoint
	ChartErr error
}

// BuildReport loads the aggregate and the chart for rng concurrently.
func BuildReport(ctx context.Context, reader StatsReader, charts ChartSource, rng Range) Report {
	rep := Report{Range: rng}
	var g errgroup.Group
	if reader != nil {
		g.Go(func() error {
			rep.Result, rep.StatsErr = reader.Read(ctx)
			return nil
		})
	}
	if charts != nil {
		g.Go(func() error {
			rep.Points, rep.ChartErr = LoadChart(ctx, charts, rng)
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

// LoadChart fetches the series for rng and trims it to the range.
func LoadChart(ctx context.Context, charts ChartSource, rng Range) ([]model.ChartPoint, error) {
	points, err := charts.Chart(ctx, string(rng))
	if err != nil {
		return nil, err
	}
	return FilterRange(points, rng), nil
}
