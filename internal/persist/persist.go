// Package persist stores session state, stats submission records and the
// player id on top of a store.KV.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/stockle/internal/hint"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/store"
)

const (
	// SessionKey holds the current day's session envelope.
	SessionKey = "stockle:game-state"
	// StatsKeyPrefix prefixes the per-day stats submission records.
	StatsKeyPrefix = "stockle:stats-submitted:"

	sessionVersion = 1
)

type sessionEnvelope struct {
	V     int                 `json:"v"`
	State *model.SessionState `json:"state"`
}

// Sessions saves and restores the current day's SessionState.
type Sessions struct {
	kv    store.KV
	today func() string
	log   *zap.Logger
}

// NewSessions returns Sessions backed by kv. today returns the current day key.
func NewSessions(kv store.KV, today func() string, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{kv: kv, today: today, log: log.With(zap.String("component", "persist"))}
}

// Save writes the full state. It returns once the write has completed.
func (s *Sessions) Save(ctx context.Context, state model.SessionState) error {
	if state.Guesses == nil {
		state.Guesses = []model.GuessResult{}
	}
	raw, err := json.Marshal(sessionEnvelope{V: sessionVersion, State: &state})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns today's state. Missing, unreadable, foreign-version and
// other-day records are all reported as absent.
func (s *Sessions) Load(ctx context.Context) (model.SessionState, bool) {
	raw, ok, err := s.kv.Get(ctx, SessionKey)
	if err != nil {
		s.log.Debug("session read failed", zap.Error(err))
		return model.SessionState{}, false
	}
	if !ok {
		return model.SessionState{}, false
	}
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Debug("session decode failed", zap.Error(err))
		return model.SessionState{}, false
	}
	if env.V != sessionVersion || env.State == nil {
		s.log.Debug("session version mismatch", zap.Int("version", env.V))
		return model.SessionState{}, false
	}
	state := *env.State
	if state.Date != s.today() {
		return model.SessionState{}, false
	}
	if state.Guesses == nil {
		state.Guesses = []model.GuessResult{}
	}
	if len(state.Guesses) > model.MaxGuesses || state.HintLevel < 0 || state.HintLevel > hint.MaxLevel {
		s.log.Debug("session out of range", zap.Int("guesses", len(state.Guesses)), zap.Int("hintLevel", state.HintLevel))
		return model.SessionState{}, false
	}
	return state, true
}

// Clear removes the stored session.
func (s *Sessions) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
