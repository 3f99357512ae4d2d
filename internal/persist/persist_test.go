package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/store"
)

func fixedDay(day string) func() string {
	return func() string { return day }
}

func ptr[T any](v T) *T { return &v }

func sampleState() model.SessionState {
	state := model.NewSessionState("2026-10-19")
	state.Guesses = append(state.Guesses, model.GuessResult{
		Ticker: "AAPL",
		Guess:  model.GuessedStock{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology"},
		Comparisons: model.Comparisons{
			Sector:    model.Comparison{Value: "Technology", Status: model.StatusCorrect},
			MarketCap: model.Comparison{Value: "$3.4T", Status: model.StatusHigher, Closeness: ptr(0.4)},
		},
	})
	state.HintLevel = 1
	state.Hints = model.Hints{Sector: "Technology"}
	return state
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	sessions := NewSessions(kv, fixedDay("2026-10-19"), nil)

	want := sampleState()
	want.GaveUp = true
	want.Answer = &model.Answer{Ticker: "NVDA", Name: "NVIDIA Corporation"}
	require.NoError(t, sessions.Save(ctx, want))

	got, ok := sessions.Load(ctx)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionOtherDayIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, NewSessions(kv, fixedDay("2026-10-18"), nil).Save(ctx, func() model.SessionState {
		s := sampleState()
		s.Date = "2026-10-18"
		return s
	}()))

	_, ok := NewSessions(kv, fixedDay("2026-10-19"), nil).Load(ctx)
	require.False(t, ok)
}

func TestSessionCorruptOrForeignIsAbsent(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"garbage":        `{not json`,
		"bare state":     `{"date":"2026-10-19","guesses":[]}`,
		"future version": `{"v":2,"state":{"date":"2026-10-19","guesses":[]}}`,
		"bad hint level": `{"v":1,"state":{"date":"2026-10-19","guesses":[],"hintLevel":4}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			kv := store.NewMemoryStore()
			require.NoError(t, kv.Set(ctx, SessionKey, []byte(raw)))
			_, ok := NewSessions(kv, fixedDay("2026-10-19"), nil).Load(ctx)
			require.False(t, ok)
		})
	}
}

type failingKV struct{ store.KV }

func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestSessionReadFailureIsAbsent(t *testing.T) {
	sessions := NewSessions(failingKV{store.NewMemoryStore()}, fixedDay("2026-10-19"), nil)
	_, ok := sessions.Load(context.Background())
	require.False(t, ok)
	require.Error(t, sessions.Save(context.Background(), sampleState()))
}

func TestStatsRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	records := NewStatsRecords(store.NewMemoryStore(), nil)
	want := StatsRecord{
		YourResult: 3,
		Percentile: ptr(72.5),
		Aggregate:  &model.StatsAggregate{Distribution: []int{1, 2, 3, 4, 5, 6, 7}, TotalPlays: 28, Average: 4.2},
	}
	require.NoError(t, records.Save(ctx, "2026-10-19", want))

	got, ok := records.Load(ctx, "2026-10-19")
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	_, ok = records.Load(ctx, "2026-10-20")
	require.False(t, ok)
}

func TestLegacyStatsRecordIsDiscarded(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, StatsKey("2026-10-19"), []byte("true")))

	_, ok := NewStatsRecords(kv, nil).Load(ctx, "2026-10-19")
	require.False(t, ok)

	_, found, err := kv.Get(ctx, StatsKey("2026-10-19"))
	require.NoError(t, err)
	require.False(t, found, "legacy record should be deleted")
}

func TestPlayerIDIsStable(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	first, err := PlayerID(ctx, kv)
	require.NoError(t, err)
	require.Len(t, first, 36)

	second, err := PlayerID(ctx, kv)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, kv.Set(ctx, PlayerKey, []byte("not-a-uuid")))
	third, err := PlayerID(ctx, kv)
	require.NoError(t, err)
	require.NotEqual(t, "not-a-uuid", third)
}
