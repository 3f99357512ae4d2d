package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/stockle/internal/api"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/persist"
	"github.com/verte-zerg/stockle/internal/statsclient"
	"github.com/verte-zerg/stockle/internal/store"
)

type countingStats struct {
	submits int
	reads   int
}

func (c *countingStats) SubmitStats(_ context.Context, _ int, _ bool) (api.SubmitResponse, error) {
	c.submits++
	return api.SubmitResponse{
		StatsAggregate: model.StatsAggregate{Distribution: []int{0, 0, 1, 0, 0, 0, 0}, TotalPlays: 1, Average: 3},
	}, nil
}

func (c *countingStats) ReadStats(_ context.Context) (model.StatsAggregate, error) {
	c.reads++
	return model.StatsAggregate{Distribution: []int{1, 0, 1, 0, 0, 0, 0}, TotalPlays: 2, Average: 2}, nil
}

func TestResetKeepsStatsRecord(t *testing.T) {
	ctx := context.Background()
	day := "2026-10-19"
	today := func() string { return day }
	kv := store.NewMemoryStore()
	sessions := persist.NewSessions(kv, today, nil)
	svc := &countingStats{}

	state := model.NewSessionState(day)
	state.Guesses = append(state.Guesses, model.GuessResult{Correct: true})
	require.NoError(t, sessions.Save(ctx, state))
	first := statsclient.New(svc, persist.NewStatsRecords(kv, nil), today, nil)
	_, err := first.SubmitOnce(ctx, 3, true)
	require.NoError(t, err)

	require.NoError(t, resetSession(ctx, sessions))
	_, ok := sessions.Load(ctx)
	assert.False(t, ok, "session should be gone")

	replay := statsclient.New(svc, persist.NewStatsRecords(kv, nil), today, nil)
	res, err := replay.SubmitOnce(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	require.NotNil(t, res.YourResult)
	assert.Equal(t, 3, *res.YourResult, "first result is kept")
	assert.Equal(t, 1, svc.submits)
	assert.Equal(t, 1, svc.reads)
}
