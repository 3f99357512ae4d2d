package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/verte-zerg/stockle/internal/hint"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/persist"
	"github.com/verte-zerg/stockle/internal/statsclient"
	"github.com/verte-zerg/stockle/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const answerTicker = "NVDA"

type fakeService struct {
	evalErr   error
	answerErr error
	hintErr   error
	// gate blocks Evaluate until closed when non-nil.
	gate    chan struct{}
	started chan struct{}
	// answerGate blocks Answer the same way.
	answerGate    chan struct{}
	answerStarted chan struct{}

	evals   atomic.Int32
	answers atomic.Int32
	hints   atomic.Int32
}

func comparisons(status model.Status) model.Comparisons {
	c := model.Comparison{Value: "x", Status: status}
	return model.Comparisons{Sector: c, Industry: c, MarketCap: c, Price: c, PERatio: c, DividendYield: c}
}

func (f *fakeService) Evaluate(ctx context.Context, ticker string) (model.GuessResult, error) {
	f.evals.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.evalErr != nil {
		return model.GuessResult{}, f.evalErr
	}
	if ticker == answerTicker {
		return model.GuessResult{Ticker: ticker, Correct: true, Comparisons: comparisons(model.StatusCorrect)}, nil
	}
	return model.GuessResult{Ticker: ticker, Comparisons: comparisons(model.StatusWrong)}, nil
}

func (f *fakeService) Answer(ctx context.Context) (model.Answer, error) {
	f.answers.Add(1)
	if f.answerStarted != nil {
		f.answerStarted <- struct{}{}
	}
	if f.answerGate != nil {
		<-f.answerGate
	}
	if f.answerErr != nil {
		return model.Answer{}, f.answerErr
	}
	return model.Answer{Ticker: answerTicker, Name: "NVIDIA Corporation"}, nil
}

func (f *fakeService) Hint(ctx context.Context, level int) (model.Hints, error) {
	f.hints.Add(1)
	if f.hintErr != nil {
		return model.Hints{}, f.hintErr
	}
	// Each level only returns its own field.
	switch level {
	case 1:
		return model.Hints{Sector: "Technology"}, nil
	case 2:
		return model.Hints{Industry: "Semiconductors"}, nil
	default:
		return model.Hints{Ticker: answerTicker}, nil
	}
}

type fakeStats struct {
	mu    sync.Mutex
	calls []statsCall
	err   error
}

type statsCall struct {
	guessCount int
	won        bool
}

func (f *fakeStats) SubmitOnce(ctx context.Context, guessCount int, won bool) (statsclient.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statsCall{guessCount, won})
	if f.err != nil {
		return statsclient.Result{}, f.err
	}
	your := statsclient.YourResult(guessCount, won)
	return statsclient.Result{
		YourResult: &your,
		Aggregate:  &model.StatsAggregate{Distribution: make([]int, model.DistributionBuckets), TotalPlays: 1},
		Submitted:  true,
	}, nil
}

func (f *fakeStats) Calls() []statsCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statsCall(nil), f.calls...)
}

type harness struct {
	svc   *fakeService
	stats *fakeStats
	kv    *store.MemoryStore
	day   string
	c     *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{svc: &fakeService{}, stats: &fakeStats{}, kv: store.NewMemoryStore(), day: "2026-10-19"}
	h.c = h.controller(t)
	return h
}

func (h *harness) controller(t *testing.T) *Controller {
	today := func() string { return h.day }
	c := New(Options{
		Service:  h.svc,
		Sessions: persist.NewSessions(h.kv, today, nil),
		Stats:    h.stats,
		Today:    today,
	})
	t.Cleanup(c.Close)
	c.LoadOrInit(context.Background())
	return c
}

func guessAll(t *testing.T, c *Controller, tickers ...string) Report {
	t.Helper()
	var rep Report
	for _, tk := range tickers {
		rep = c.SubmitGuess(context.Background(), tk)
		require.Equal(t, Applied, rep.Outcome, "guess %s: %v", tk, rep.Err)
	}
	return rep
}

func TestWinOnThirdGuess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.Equal(t, StatusEmpty, h.c.Status())

	rep := guessAll(t, h.c, "AAPL", "msft", answerTicker)
	require.True(t, rep.State.HasWon())
	require.True(t, rep.State.GameOver())
	require.Nil(t, rep.State.Answer)
	require.Equal(t, StatusWon, h.c.Status())
	require.True(t, strings.HasPrefix(h.c.ShareText(), "STOCKLE 3/6\n\n"))
	require.Equal(t, "MSFT", rep.State.Guesses[1].Ticker)

	after := h.c.SubmitGuess(ctx, "AMD")
	require.Equal(t, Rejected, after.Outcome)
	require.ErrorIs(t, after.Err, ErrGameOver)
	require.Len(t, after.State.Guesses, 3)

	sr := h.c.Stats(ctx)
	require.Equal(t, Applied, sr.Outcome)
	require.Equal(t, 3, *sr.Result.YourResult)
	h.c.Stats(ctx)
	require.Equal(t, []statsCall{{3, true}}, h.stats.Calls())
	require.EqualValues(t, 0, h.svc.answers.Load())
}

func TestLoseAfterSixGuesses(t *testing.T) {
	h := newHarness(t)
	var rep Report
	for i := 0; i < model.MaxGuesses; i++ {
		rep = h.c.SubmitGuess(context.Background(), []string{"A", "B", "C", "D", "E", "F"}[i])
		require.Equal(t, Applied, rep.Outcome)
		if i < model.MaxGuesses-1 {
			require.False(t, rep.State.GameOver())
			require.Nil(t, rep.State.Answer)
		}
	}
	require.True(t, rep.State.HasLost())
	require.NotNil(t, rep.State.Answer)
	require.Equal(t, answerTicker, rep.State.Answer.Ticker)
	require.EqualValues(t, 1, h.svc.answers.Load())
	require.True(t, strings.HasPrefix(h.c.ShareText(), "STOCKLE X/6\n\n"))

	rej := h.c.SubmitGuess(context.Background(), "G")
	require.Equal(t, Rejected, rej.Outcome)
	require.Len(t, h.c.Snapshot().Guesses, model.MaxGuesses)

	sr := h.c.Stats(context.Background())
	require.Equal(t, statsclient.LossResult, *sr.Result.YourResult)
	require.Equal(t, []statsCall{{6, false}}, h.stats.Calls())
}

func TestLoseWithAnswerFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.answerErr = errors.New("503")
	rep := guessAll(t, h.c, "A", "B", "C", "D", "E", "F")
	require.ErrorIs(t, rep.Err, ErrAnswerFetch)
	require.True(t, rep.State.HasLost())
	require.Nil(t, rep.State.Answer)
	require.Equal(t, StatusLost, h.c.Status())
	h.c.Stats(context.Background())
}

func TestHintLadder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rep := h.c.RequestHint(ctx)
	require.Equal(t, Applied, rep.Outcome)
	require.Equal(t, model.Hints{Sector: "Technology"}, rep.State.Hints)
	require.Equal(t, StatusInProgress, h.c.Status())

	rep = h.c.RequestHint(ctx)
	require.Equal(t, model.Hints{Sector: "Technology", Industry: "Semiconductors"}, rep.State.Hints)

	rep = h.c.RequestHint(ctx)
	require.Equal(t, 3, rep.State.HintLevel)
	require.Equal(t, answerTicker, rep.State.Hints.Ticker)
	require.Equal(t, "Technology", rep.State.Hints.Sector)

	before := h.c.Snapshot()
	rep = h.c.RequestHint(ctx)
	require.Equal(t, Rejected, rep.Outcome)
	require.ErrorIs(t, rep.Err, hint.ErrAtMax)
	if diff := cmp.Diff(before, h.c.Snapshot()); diff != "" {
		t.Fatalf("state changed on rejected hint (-before +after):\n%s", diff)
	}
	require.EqualValues(t, 3, h.svc.hints.Load())
}

func TestHintFailureKeepsLevel(t *testing.T) {
	h := newHarness(t)
	h.svc.hintErr = errors.New("timeout")
	rep := h.c.RequestHint(context.Background())
	require.Equal(t, Failed, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrHintFetch)
	require.Zero(t, h.c.Snapshot().HintLevel)

	h.svc.hintErr = nil
	rep = h.c.RequestHint(context.Background())
	require.Equal(t, Applied, rep.Outcome)
	require.Equal(t, 1, rep.State.HintLevel)
}

func TestGiveUpAfterTwoGuesses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	guessAll(t, h.c, "AAPL", "MSFT")

	rep := h.c.GiveUp(ctx)
	require.Equal(t, Applied, rep.Outcome)
	require.NoError(t, rep.Err)
	require.True(t, rep.State.GaveUp)
	require.NotNil(t, rep.State.Answer)
	require.Len(t, rep.State.Guesses, 2)
	require.Equal(t, StatusGaveUp, h.c.Status())
	require.Contains(t, strings.SplitN(h.c.ShareText(), "\n", 2)[0], "(gave up)")

	again := h.c.GiveUp(ctx)
	require.Equal(t, Rejected, again.Outcome)
	require.Equal(t, Rejected, h.c.RequestHint(ctx).Outcome)

	h.c.Stats(ctx)
	require.Equal(t, []statsCall{{2, false}}, h.stats.Calls())
}

func TestGiveUpPersistsBeforeAnswer(t *testing.T) {
	h := newHarness(t)
	h.svc.answerErr = errors.New("down")
	rep := h.c.GiveUp(context.Background())
	require.Equal(t, Applied, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrAnswerFetch)

	saved, ok := persist.NewSessions(h.kv, func() string { return h.day }, nil).Load(context.Background())
	require.True(t, ok)
	require.True(t, saved.GaveUp)
	require.Nil(t, saved.Answer)
	h.c.Stats(context.Background())
}

func TestEvaluationFailureConsumesNothing(t *testing.T) {
	h := newHarness(t)
	h.svc.evalErr = errors.New("connection refused")
	rep := h.c.SubmitGuess(context.Background(), "AAPL")
	require.Equal(t, Failed, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrEvaluation)
	require.Empty(t, h.c.Snapshot().Guesses)
}

func TestEmptyTickerRejected(t *testing.T) {
	h := newHarness(t)
	rep := h.c.SubmitGuess(context.Background(), "   ")
	require.Equal(t, Rejected, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrEmptyTicker)
	require.Zero(t, h.svc.evals.Load())
}

func TestConcurrentGuessIsBusy(t *testing.T) {
	h := newHarness(t)
	h.svc.gate = make(chan struct{})
	h.svc.started = make(chan struct{}, 1)

	done := make(chan Report)
	go func() {
		done <- h.c.SubmitGuess(context.Background(), "AAPL")
	}()
	<-h.svc.started

	rep := h.c.SubmitGuess(context.Background(), "MSFT")
	require.Equal(t, Busy, rep.Outcome)

	close(h.svc.gate)
	first := <-done
	require.Equal(t, Applied, first.Outcome)
	require.Len(t, h.c.Snapshot().Guesses, 1)
	require.EqualValues(t, 1, h.svc.evals.Load())
}

func TestStaleGuessAfterGiveUpIsApplied(t *testing.T) {
	h := newHarness(t)
	h.svc.gate = make(chan struct{})
	h.svc.started = make(chan struct{}, 1)

	done := make(chan Report)
	go func() {
		done <- h.c.SubmitGuess(context.Background(), answerTicker)
	}()
	<-h.svc.started

	gave := h.c.GiveUp(context.Background())
	require.Equal(t, Applied, gave.Outcome)

	close(h.svc.gate)
	late := <-done
	require.Equal(t, Applied, late.Outcome)
	require.Len(t, late.State.Guesses, 1)
	require.True(t, late.State.Guesses[0].Correct)
	require.Equal(t, StatusGaveUp, StatusOf(late.State))

	share := h.c.ShareText()
	require.True(t, strings.HasPrefix(share, "STOCKLE X/6 (gave up)\n\n"), share)
	h.c.Stats(context.Background())
	require.Equal(t, []statsCall{{0, false}}, h.stats.Calls())
}

func TestGiveUpAnswerFailureReturnsCurrentState(t *testing.T) {
	h := newHarness(t)
	h.svc.gate = make(chan struct{})
	h.svc.started = make(chan struct{}, 1)
	h.svc.answerGate = make(chan struct{})
	h.svc.answerStarted = make(chan struct{}, 1)
	h.svc.answerErr = errors.New("down")

	guessed := make(chan Report)
	go func() {
		guessed <- h.c.SubmitGuess(context.Background(), "AAPL")
	}()
	<-h.svc.started

	gaveUp := make(chan Report)
	go func() {
		gaveUp <- h.c.GiveUp(context.Background())
	}()
	<-h.svc.answerStarted

	close(h.svc.gate)
	require.Equal(t, Applied, (<-guessed).Outcome)

	close(h.svc.answerGate)
	rep := <-gaveUp
	require.Equal(t, Applied, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrAnswerFetch)
	require.True(t, rep.State.GaveUp)
	require.Len(t, rep.State.Guesses, 1)
	if diff := cmp.Diff(h.c.Snapshot(), rep.State); diff != "" {
		t.Fatalf("report state mismatch (-want +got):\n%s", diff)
	}
	h.c.Stats(context.Background())
}

func TestResumeRevealsFinishedGame(t *testing.T) {
	h := newHarness(t)
	guessAll(t, h.c, "AAPL", answerTicker)
	h.c.Stats(context.Background())

	c2 := New(Options{
		Service:  h.svc,
		Sessions: persist.NewSessions(h.kv, func() string { return h.day }, nil),
		Stats:    h.stats,
		Today:    func() string { return h.day },
	})
	t.Cleanup(c2.Close)
	res := c2.LoadOrInit(context.Background())
	require.True(t, res.Restored)
	require.True(t, res.RevealDialog)
	if diff := cmp.Diff(h.c.Snapshot(), res.State); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestResumeInProgressDoesNotReveal(t *testing.T) {
	h := newHarness(t)
	guessAll(t, h.c, "AAPL")
	res := h.controller(t).LoadOrInit(context.Background())
	require.True(t, res.Restored)
	require.False(t, res.RevealDialog)
}

func TestNextDayStartsFresh(t *testing.T) {
	h := newHarness(t)
	guessAll(t, h.c, "AAPL", "MSFT")
	h.day = "2026-10-20"

	require.Equal(t, StatusEmpty, h.c.Status())
	require.Equal(t, "2026-10-20", h.c.Snapshot().Date)

	res := h.controller(t).LoadOrInit(context.Background())
	require.False(t, res.Restored)
	require.Empty(t, res.State.Guesses)
}

func TestStatsRejectedWhileInProgress(t *testing.T) {
	h := newHarness(t)
	sr := h.c.Stats(context.Background())
	require.Equal(t, Rejected, sr.Outcome)
	require.ErrorIs(t, sr.Err, ErrNotOver)
	require.Empty(t, h.stats.Calls())
}

func TestStatsFailureDoesNotBlockTerminalState(t *testing.T) {
	h := newHarness(t)
	h.stats.err = statsclient.ErrStats
	rep := guessAll(t, h.c, answerTicker)
	require.True(t, rep.State.GameOver())

	sr := h.c.Stats(context.Background())
	require.Equal(t, Failed, sr.Outcome)
	require.ErrorIs(t, sr.Err, statsclient.ErrStats)
	require.Equal(t, StatusWon, h.c.Status())
}
