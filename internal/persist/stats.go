package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/store"
)

// StatsRecord remembers a completed stats submission for one day.
type StatsRecord struct {
	YourResult int      `json:"yourResult"`
	Percentile *float64 `json:"percentile,omitempty"`
	// Aggregate is the snapshot returned by the submission.
	Aggregate *model.StatsAggregate `json:"aggregate,omitempty"`
}

var errMissingResult = errors.New("missing yourResult")

// StatsRecords stores per-day submission records.
type StatsRecords struct {
	kv  store.KV
	log *zap.Logger
}

// NewStatsRecords returns StatsRecords backed by kv.
func NewStatsRecords(kv store.KV, log *zap.Logger) *StatsRecords {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsRecords{kv: kv, log: log.With(zap.String("component", "persist"))}
}

// StatsKey returns the record key for day.
func StatsKey(day string) string {
	return StatsKeyPrefix + day
}

// Load returns the record for day. Records in any other shape, including the
// legacy bare boolean, are deleted and reported absent.
func (r *StatsRecords) Load(ctx context.Context, day string) (StatsRecord, bool) {
	key := StatsKey(day)
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		r.log.Debug("stats record read failed", zap.String("day", day), zap.Error(err))
		return StatsRecord{}, false
	}
	if !ok {
		return StatsRecord{}, false
	}
	var rec StatsRecord
	if err := decodeStrict(raw, &rec); err != nil || rec.YourResult < 1 || rec.YourResult > model.DistributionBuckets {
		r.log.Debug("discarding stats record", zap.String("day", day), zap.ByteString("raw", raw))
		if derr := r.kv.Delete(ctx, key); derr != nil {
			r.log.Debug("stats record delete failed", zap.String("day", day), zap.Error(derr))
		}
		return StatsRecord{}, false
	}
	return rec, true
}

// Save writes the record for day.
func (r *StatsRecords) Save(ctx context.Context, day string, rec StatsRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode stats record: %w", err)
	}
	if err := r.kv.Set(ctx, StatsKey(day), raw); err != nil {
		return fmt.Errorf("failed to save stats record: %w", err)
	}
	return nil
}

func decodeStrict(raw []byte, rec *StatsRecord) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if _, ok := probe["yourResult"]; !ok {
		return errMissingResult
	}
	return json.Unmarshal(raw, rec)
}
