// Package api is the HTTP client for the remote game service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/stockle/internal/model"
)

// PlayerHeader carries the anonymous player id on every request.
const PlayerHeader = "X-Player-ID"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	PlayerID       string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the game service.
type Client struct {
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	playerID string
	log      *zap.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// New returns a Client for opts.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	burst := int(opts.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		base:     base,
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst),
		playerID: opts.PlayerID,
		log:      log.With(zap.String("component", "api")),
	}, nil
}

type guessRequest struct {
	Ticker string `json:"ticker"`
}

// Evaluate submits a guess and returns its comparisons.
func (c *Client) Evaluate(ctx context.Context, ticker string) (model.GuessResult, error) {
	var res model.GuessResult
	if err := c.do(ctx, http.MethodPost, "/api/guess", nil, guessRequest{Ticker: ticker}, &res); err != nil {
		return model.GuessResult{}, err
	}
	if res.Ticker == "" {
		res.Ticker = res.Guess.Ticker
	}
	res.Comparisons = normalize(res.Comparisons)
	return res, nil
}

// Answer returns today's hidden stock.
func (c *Client) Answer(ctx context.Context) (model.Answer, error) {
	var ans model.Answer
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/today/answer", nil, nil, &ans); err != nil {
		return model.Answer{}, err
	}
	if ans.Ticker == "" {
		return model.Answer{}, errors.New("answer response missing ticker")
	}
	return ans, nil
}

// Hint returns the hint fields unlocked at level.
func (c *Client) Hint(ctx context.Context, level int) (model.Hints, error) {
	var h model.Hints
	q := url.Values{"level": {strconv.Itoa(level)}}
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/today/hint", q, nil, &h); err != nil {
		return model.Hints{}, err
	}
	return h, nil
}

type submitRequest struct {
	GuessCount int  `json:"guessCount"`
	Won        bool `json:"won"`
}

// SubmitResponse is the service reply to a stats submission.
type SubmitResponse struct {
	model.StatsAggregate
	YourResult *int     `json:"yourResult,omitempty"`
	Percentile *float64 `json:"percentile,omitempty"`
}

// SubmitStats records today's result and returns the updated aggregate.
func (c *Client) SubmitStats(ctx context.Context, guessCount int, won bool) (SubmitResponse, error) {
	var res SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/stats/today", nil, submitRequest{GuessCount: guessCount, Won: won}, &res); err != nil {
		return SubmitResponse{}, err
	}
	res.StatsAggregate = padDistribution(res.StatsAggregate)
	return res, nil
}

// ReadStats returns today's aggregate without submitting.
func (c *Client) ReadStats(ctx context.Context) (model.StatsAggregate, error) {
	var agg model.StatsAggregate
	if err := c.do(ctx, http.MethodGet, "/api/stats/today", nil, nil, &agg); err != nil {
		return model.StatsAggregate{}, err
	}
	return padDistribution(agg), nil
}

type stocksResponse struct {
	Stocks []model.Stock `json:"stocks"`
}

// Stocks returns the metadata listing used for search.
func (c *Client) Stocks(ctx context.Context) ([]model.Stock, error) {
	var res stocksResponse
	if err := c.do(ctx, http.MethodGet, "/api/stocks/metadata", nil, nil, &res); err != nil {
		return nil, err
	}
	return res.Stocks, nil
}

// Filters returns the available sectors and industries.
func (c *Client) Filters(ctx context.Context) (model.FilterOptions, error) {
	var res model.FilterOptions
	if err := c.do(ctx, http.MethodGet, "/api/stocks/filters", nil, nil, &res); err != nil {
		return model.FilterOptions{}, err
	}
	return res, nil
}

type chartResponse struct {
	Range string             `json:"range"`
	Data  []model.ChartPoint `json:"data"`
}

// Chart returns the answer's price history for rng (1W, 1M, 1Y or 5Y).
func (c *Client) Chart(ctx context.Context, rng string) ([]model.ChartPoint, error) {
	var res chartResponse
	q := url.Values{"range": {rng}}
	if err := c.do(ctx, http.MethodGet, "/api/puzzle/today/chart", q, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.playerID != "" {
		req.Header.Set(PlayerHeader, c.playerID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func statusError(code int, raw []byte) *StatusError {
	var body struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &body) == nil {
		msg = body.Error
	}
	return &StatusError{StatusCode: code, Message: msg}
}

// normalize drops closeness from non-directional comparisons.
func normalize(c model.Comparisons) model.Comparisons {
	fix := func(cmp *model.Comparison) {
		if !cmp.Status.Directional() {
			cmp.Closeness = nil
		}
	}
	fix(&c.Sector)
	fix(&c.Industry)
	fix(&c.MarketCap)
	fix(&c.Price)
	fix(&c.PERatio)
	fix(&c.DividendYield)
	return c
}

func padDistribution(agg model.StatsAggregate) model.StatsAggregate {
	if len(agg.Distribution) >= model.DistributionBuckets {
		agg.Distribution = agg.Distribution[:model.DistributionBuckets]
		return agg
	}
	out := make([]int, model.DistributionBuckets)
	copy(out, agg.Distribution)
	agg.Distribution = out
	return agg
}
