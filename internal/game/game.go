// Package game implements the daily session controller.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/stockle/internal/hint"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/share"
	"github.com/verte-zerg/stockle/internal/statsclient"
)

var (
	// ErrEvaluation means a guess could not be scored. No guess is consumed.
	ErrEvaluation = errors.New("guess evaluation failed")
	// ErrAnswerFetch means the answer could not be revealed. The terminal transition still happens.
	ErrAnswerFetch = errors.New("answer fetch failed")
	// ErrHintFetch means the hint level was not advanced.
	ErrHintFetch = errors.New("hint fetch failed")
	// ErrPersist means the in-memory state changed but the write did not complete.
	ErrPersist = errors.New("state not saved")

	ErrGameOver    = errors.New("game is over")
	ErrNotOver     = errors.New("game is not over")
	ErrEmptyTicker = errors.New("ticker is empty")
)

const statsTimeout = 15 * time.Second

// Service is the remote game service.
type Service interface {
	Evaluate(ctx context.Context, ticker string) (model.GuessResult, error)
	Answer(ctx context.Context) (model.Answer, error)
	Hint(ctx context.Context, level int) (model.Hints, error)
}

// SessionStore persists the day's state.
type SessionStore interface {
	Save(ctx context.Context, state model.SessionState) error
	Load(ctx context.Context) (model.SessionState, bool)
}

// StatsSubmitter submits the finished game.
type StatsSubmitter interface {
	SubmitOnce(ctx context.Context, guessCount int, won bool) (statsclient.Result, error)
}

// Status is the derived session status.
type Status int

const (
	StatusEmpty Status = iota
	StatusInProgress
	StatusWon
	StatusLost
	StatusGaveUp
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusInProgress:
		return "in progress"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	case StatusGaveUp:
		return "gave up"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further actions are accepted.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusGaveUp
}

// StatusOf derives the status of state.
func StatusOf(state model.SessionState) Status {
	switch {
	case state.GaveUp:
		return StatusGaveUp
	case state.HasWon():
		return StatusWon
	case state.HasLost():
		return StatusLost
	case len(state.Guesses) == 0 && state.HintLevel == 0:
		return StatusEmpty
	default:
		return StatusInProgress
	}
}

// Outcome classifies the result of a controller operation.
type Outcome int

const (
	// Applied means the state changed.
	Applied Outcome = iota
	// Rejected means the action is not valid in the current state. Nothing changed.
	Rejected
	// Busy means an action of the same kind is still in flight.
	Busy
	// Failed means a collaborator failed. Nothing changed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	case Busy:
		return "busy"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Report is returned by every mutating operation.
type Report struct {
	Outcome Outcome
	// Err explains Rejected and Failed outcomes. On Applied it carries a
	// best-effort failure such as ErrAnswerFetch or ErrPersist.
	Err   error
	State model.SessionState
}

// StatsReport is returned by Stats.
type StatsReport struct {
	Outcome Outcome
	Err     error
	Result  statsclient.Result
}

// LoadResult is returned by LoadOrInit.
type LoadResult struct {
	State model.SessionState
	// Restored is set when a saved game for today was found.
	Restored bool
	// RevealDialog is set when the restored game is already finished.
	RevealDialog bool
}

type actionKind int

const (
	actionGuess actionKind = iota
	actionHint
	actionGiveUp
)

type statsTask struct {
	day    string
	done   chan struct{}
	report StatsReport
}

// Controller owns the day's SessionState. It is safe for concurrent use.
type Controller struct {
	svc      Service
	sessions SessionStore
	stats    StatsSubmitter
	today    func() string
	log      *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	state    model.SessionState
	inflight map[actionKind]bool
	task     *statsTask
}

// Options configures a Controller.
type Options struct {
	Service  Service
	Sessions SessionStore
	Stats    StatsSubmitter
	// Today returns the current day key.
	Today  func() string
	Logger *zap.Logger
}

// New returns a Controller with an empty state for today.
func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	today := opts.Today
	if today == nil {
		today = func() string { return model.DayKey(time.Now()) }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:      opts.Service,
		sessions: opts.Sessions,
		stats:    opts.Stats,
		today:    today,
		log:      log.With(zap.String("component", "game")),
		baseCtx:  ctx,
		cancel:   cancel,
		state:    model.NewSessionState(today()),
		inflight: map[actionKind]bool{},
	}
}

// Close stops the background stats task and waits for it.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// LoadOrInit restores today's saved game or starts a fresh one.
func (c *Controller) LoadOrInit(ctx context.Context) LoadResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := c.today()
	state, ok := c.sessions.Load(ctx)
	if !ok || state.Date != day {
		c.reset(day)
		return LoadResult{State: c.state.Clone()}
	}
	c.state = state
	c.task = nil
	c.log.Info("restored session",
		zap.String("day", day),
		zap.Int("guesses", len(state.Guesses)),
		zap.Stringer("status", StatusOf(state)),
	)
	return LoadResult{
		State:        state.Clone(),
		Restored:     true,
		RevealDialog: state.GameOver(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return c.state.Clone()
}

// Status returns the derived status of the current state.
func (c *Controller) Status() Status {
	return StatusOf(c.Snapshot())
}

// ShareText renders the current state as share text.
func (c *Controller) ShareText() string {
	s := c.Snapshot()
	return share.Render(s.Guesses, s.GaveUp, s.HintLevel, StatusOf(s) == StatusWon)
}

// SubmitGuess evaluates ticker and appends the result.
func (c *Controller) SubmitGuess(ctx context.Context, ticker string) Report {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return c.report(Rejected, ErrEmptyTicker)
	}
	if rep, ok := c.begin(actionGuess); !ok {
		return rep
	}
	defer c.end(actionGuess)

	res, err := c.svc.Evaluate(ctx, ticker)
	if err != nil {
		c.log.Warn("guess evaluation failed", zap.String("ticker", ticker), zap.Error(err))
		return c.report(Failed, fmt.Errorf("%w: %w", ErrEvaluation, err))
	}

	c.mu.Lock()
	needAnswer := !res.Correct && len(c.state.Guesses)+1 == model.MaxGuesses && c.state.Answer == nil
	c.mu.Unlock()

	var answer *model.Answer
	var answerErr error
	if needAnswer {
		answer, answerErr = c.fetchAnswer(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.state.Guesses) >= model.MaxGuesses || c.state.HasWon() {
		return Report{Outcome: Rejected, Err: ErrGameOver, State: c.state.Clone()}
	}
	next := c.state.Clone()
	next.Guesses = append(next.Guesses, res)
	if answer != nil && next.Answer == nil {
		next.Answer = answer
	}
	rep := c.commit(ctx, next)
	if rep.Err == nil {
		rep.Err = answerErr
	}
	return rep
}

// RequestHint unlocks the next hint level.
func (c *Controller) RequestHint(ctx context.Context) Report {
	c.mu.Lock()
	c.rollover()
	if c.state.GameOver() {
		c.mu.Unlock()
		return c.report(Rejected, ErrGameOver)
	}
	level, err := hint.Next(c.state.HintLevel)
	if err != nil {
		c.mu.Unlock()
		return c.report(Rejected, err)
	}
	if c.inflight[actionHint] {
		c.mu.Unlock()
		return c.report(Busy, nil)
	}
	c.inflight[actionHint] = true
	c.mu.Unlock()
	defer c.end(actionHint)

	h, err := c.svc.Hint(ctx, level)
	if err != nil {
		c.log.Warn("hint fetch failed", zap.Int("level", level), zap.Error(err))
		return c.report(Failed, fmt.Errorf("%w: %w", ErrHintFetch, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.HintLevel = max(next.HintLevel, level)
	next.Hints = hint.Merge(next.Hints, h)
	return c.commit(ctx, next)
}

// GiveUp ends the game and reveals the answer.
func (c *Controller) GiveUp(ctx context.Context) Report {
	if rep, ok := c.begin(actionGiveUp); !ok {
		return rep
	}
	defer c.end(actionGiveUp)

	c.mu.Lock()
	next := c.state.Clone()
	next.GaveUp = true
	first := c.commit(ctx, next)
	c.mu.Unlock()

	answer, err := c.fetchAnswer(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return Report{Outcome: Applied, Err: errors.Join(first.Err, err), State: c.state.Clone()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Answer != nil {
		return Report{Outcome: Applied, Err: first.Err, State: c.state.Clone()}
	}
	next = c.state.Clone()
	next.Answer = answer
	rep := c.commit(ctx, next)
	if rep.Err == nil {
		rep.Err = first.Err
	}
	return rep
}

// Stats returns the result of the day's stats task, starting it if the game
// is over and it has not run yet. It waits for the task or ctx.
func (c *Controller) Stats(ctx context.Context) StatsReport {
	c.mu.Lock()
	c.rollover()
	if !c.state.GameOver() {
		c.mu.Unlock()
		return StatsReport{Outcome: Rejected, Err: ErrNotOver}
	}
	task := c.startStatsLocked()
	c.mu.Unlock()

	select {
	case <-task.done:
		return task.report
	case <-ctx.Done():
		return StatsReport{Outcome: Busy, Err: ctx.Err()}
	}
}

func (c *Controller) begin(kind actionKind) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	if c.state.GameOver() {
		return Report{Outcome: Rejected, Err: ErrGameOver, State: c.state.Clone()}, false
	}
	if c.inflight[kind] {
		return Report{Outcome: Busy, State: c.state.Clone()}, false
	}
	c.inflight[kind] = true
	return Report{}, true
}

func (c *Controller) end(kind actionKind) {
	c.mu.Lock()
	delete(c.inflight, kind)
	c.mu.Unlock()
}

func (c *Controller) report(o Outcome, err error) Report {
	return Report{Outcome: o, Err: err, State: c.Snapshot()}
}

func (c *Controller) fetchAnswer(ctx context.Context) (*model.Answer, error) {
	ans, err := c.svc.Answer(ctx)
	if err != nil {
		c.log.Warn("answer fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAnswerFetch, err)
	}
	return &ans, nil
}

// commit replaces the state and writes it. Callers hold c.mu.
func (c *Controller) commit(ctx context.Context, next model.SessionState) Report {
	wasOver := c.state.GameOver()
	c.state = next
	var err error
	if serr := c.sessions.Save(ctx, next); serr != nil {
		c.log.Warn("session write failed", zap.Error(serr))
		err = fmt.Errorf("%w: %w", ErrPersist, serr)
	}
	if !wasOver && next.GameOver() {
		c.log.Info("game finished",
			zap.String("day", next.Date),
			zap.Stringer("status", StatusOf(next)),
			zap.Int("guesses", len(next.Guesses)),
		)
		c.startStatsLocked()
	}
	return Report{Outcome: Applied, Err: err, State: next.Clone()}
}

// startStatsLocked runs the stats one-shot for the current day at most once.
func (c *Controller) startStatsLocked() *statsTask {
	if c.task != nil && c.task.day == c.state.Date {
		return c.task
	}
	task := &statsTask{day: c.state.Date, done: make(chan struct{})}
	c.task = task
	guessCount := len(c.state.Guesses)
	won := StatusOf(c.state) == StatusWon

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(task.done)
		ctx, cancel := context.WithTimeout(c.baseCtx, statsTimeout)
		defer cancel()
		if c.stats == nil {
			task.report = StatsReport{Outcome: Failed, Err: statsclient.ErrStats}
			return
		}
		res, err := c.stats.SubmitOnce(ctx, guessCount, won)
		if err != nil {
			c.log.Warn("stats task failed", zap.Error(err))
			task.report = StatsReport{Outcome: Failed, Err: err, Result: res}
			return
		}
		task.report = StatsReport{Outcome: Applied, Result: res}
	}()
	return task
}

// rollover discards a state left over from an earlier day. Callers hold c.mu.
func (c *Controller) rollover() {
	if day := c.today(); c.state.Date != day {
		c.reset(day)
	}
}

func (c *Controller) reset(day string) {
	c.state = model.NewSessionState(day)
	c.task = nil
}
