package stocklist

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/verte-zerg/stockle/internal/api"
	"github.com/verte-zerg/stockle/internal/model"
)

//go:embed fallback.json
var fallbackJSON []byte

// Origin reports where a loaded list came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginCache    Origin = "cache"
	OriginFallback Origin = "bundled"
)

// Source is the remote metadata listing.
type Source interface {
	Stocks(ctx context.Context) ([]model.Stock, error)
	Filters(ctx context.Context) (model.FilterOptions, error)
}

// Loader fetches the stock list with a disk cache and a bundled fallback.
type Loader struct {
	Source Source
	// CachePath is the JSON cache file. Empty disables caching.
	CachePath string
	// MaxElapsed bounds the retry window for the remote fetch.
	MaxElapsed time.Duration
	Logger     *zap.Logger
}

type listFile struct {
	Stocks []model.Stock `json:"stocks"`
}

// Fallback returns the bundled stock list.
func Fallback() []model.Stock {
	var lf listFile
	if err := json.Unmarshal(fallbackJSON, &lf); err != nil {
		panic(fmt.Sprintf("stocklist: invalid bundled list: %v", err))
	}
	return lf.Stocks
}

// Load returns the stock list. It never fails: the cache and the bundled
// list stand in when the service is unreachable.
func (l Loader) Load(ctx context.Context) ([]model.Stock, Origin) {
	log := l.logger()
	if l.Source != nil {
		stocks, err := l.fetch(ctx)
		if err == nil && len(stocks) > 0 {
			if werr := l.writeCache(stocks); werr != nil {
				log.Debug("stock cache write failed", zap.Error(werr))
			}
			return stocks, OriginRemote
		}
		log.Warn("stock metadata fetch failed", zap.Error(err))
	}
	if stocks, err := l.readCache(); err == nil && len(stocks) > 0 {
		return stocks, OriginCache
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug("stock cache read failed", zap.Error(err))
	}
	return Fallback(), OriginFallback
}

// Filters returns the filter options from the service, or derives them from
// stocks when the service is unreachable.
func (l Loader) Filters(ctx context.Context, stocks []model.Stock) model.FilterOptions {
	if l.Source != nil {
		opts, err := l.Source.Filters(ctx)
		if err == nil && (len(opts.Sectors) > 0 || len(opts.Industries) > 0) {
			return opts
		}
		if err != nil {
			l.logger().Warn("filter options fetch failed", zap.Error(err))
		}
	}
	return DeriveFilters(stocks)
}

func (l Loader) fetch(ctx context.Context) ([]model.Stock, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = l.MaxElapsed
	if policy.MaxElapsedTime <= 0 {
		policy.MaxElapsedTime = 3 * time.Second
	}

	var stocks []model.Stock
	op := func() error {
		var err error
		stocks, err = l.Source.Stocks(ctx)
		var se *api.StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.logger().Debug("retrying stock metadata fetch", zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return stocks, nil
}

func (l Loader) readCache() ([]model.Stock, error) {
	if l.CachePath == "" {
		return nil, os.ErrNotExist
	}
	raw, err := os.ReadFile(l.CachePath)
	if err != nil {
		return nil, err
	}
	var lf listFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("failed to decode stock cache: %w", err)
	}
	return lf.Stocks, nil
}

func (l Loader) writeCache(stocks []model.Stock) error {
	if l.CachePath == "" {
		return nil
	}
	dir := filepath.Dir(l.CachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	raw, err := json.Marshal(listFile{Stocks: stocks})
	if err != nil {
		return fmt.Errorf("failed to encode stock cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "stocks-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("failed to write stock cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache: %w", err)
	}
	if err := os.Rename(tmpPath, l.CachePath); err != nil {
		return fmt.Errorf("failed to move stock cache: %w", err)
	}
	return nil
}

func (l Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger.With(zap.String("component", "stocklist"))
}
