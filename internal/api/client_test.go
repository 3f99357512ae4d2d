package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/stockle/internal/model"
)

const testPlayer = "0b4f7f7e-3c1c-4a57-9f4e-8d5f8f3f1a11"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, PlayerID: testPlayer, RequestsPerSec: 1000})
	require.NoError(t, err)
	return c
}

const guessBody = `{
  "correct": false,
  "guess": {"ticker":"AAPL","name":"Apple Inc.","sector":"Technology","industry":"Consumer Electronics","marketCap":3400000000000,"price":189.5,"peRatio":31.2,"dividendYield":0.52},
  "comparisons": {
    "sector": {"value":"Technology","status":"correct"},
    "industry": {"value":"Consumer Electronics","status":"wrong"},
    "marketCap": {"value":"$3.4T","status":"higher","closeness":0.42},
    "price": {"value":"$189.50","status":"lower","closeness":0.8},
    "peRatio": {"value":"31.2","status":"correct","closeness":1.0},
    "dividendYield": {"value":"0.52%","status":"wrong"}
  }
}`

func TestEvaluate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/guess", r.URL.Path)
		assert.Equal(t, testPlayer, r.Header.Get(PlayerHeader))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ticker":"AAPL"}`, string(body))
		_, _ = io.WriteString(w, guessBody)
	})

	res, err := c.Evaluate(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", res.Ticker)
	require.False(t, res.Correct)
	require.Equal(t, model.StatusHigher, res.Comparisons.MarketCap.Status)
	require.NotNil(t, res.Comparisons.MarketCap.Closeness)
	require.InDelta(t, 0.42, *res.Comparisons.MarketCap.Closeness, 1e-9)
	require.Nil(t, res.Comparisons.PERatio.Closeness, "closeness is dropped for exact matches")
	require.NotNil(t, res.Guess.MarketCap)
}

func TestStatusErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Stock not found"}`)
	})

	_, err := c.Evaluate(context.Background(), "ZZZZ")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Equal(t, "Stock not found", se.Message)
}

func TestHintAndAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/puzzle/today/hint":
			assert.Equal(t, "2", r.URL.Query().Get("level"))
			_, _ = io.WriteString(w, `{"level":2,"sector":"Technology","industry":"Semiconductors"}`)
		case "/api/puzzle/today/answer":
			_, _ = io.WriteString(w, `{"ticker":"NVDA","name":"NVIDIA Corporation"}`)
		default:
			http.NotFound(w, r)
		}
	})

	h, err := c.Hint(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, model.Hints{Sector: "Technology", Industry: "Semiconductors"}, h)

	ans, err := c.Answer(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.Answer{Ticker: "NVDA", Name: "NVIDIA Corporation"}, ans)
}

func TestSubmitAndReadStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats/today", r.URL.Path)
		if r.Method == http.MethodPost {
			var req submitRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, submitRequest{GuessCount: 3, Won: true}, req)
			_, _ = io.WriteString(w, `{"distribution":[1,4,9,3,1,0,2],"totalPlays":20,"average":2.9,"yourResult":3,"percentile":25}`)
			return
		}
		_, _ = io.WriteString(w, `{"distribution":[1,4],"totalPlays":5,"average":1.8}`)
	})

	res, err := c.SubmitStats(context.Background(), 3, true)
	require.NoError(t, err)
	require.Equal(t, 20, res.TotalPlays)
	require.Equal(t, 3, *res.YourResult)
	require.InDelta(t, 25.0, *res.Percentile, 1e-9)

	agg, err := c.ReadStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 0, 0, 0, 0, 0}, agg.Distribution)
}

func TestStocksFiltersChart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stocks/metadata":
			_, _ = io.WriteString(w, `{"stocks":[{"ticker":"AAPL","name":"Apple Inc.","sector":"Technology","industry":"Consumer Electronics","marketCap":1}]}`)
		case "/api/stocks/filters":
			_, _ = io.WriteString(w, `{"sectors":["Technology"],"industries":["Consumer Electronics"]}`)
		case "/api/puzzle/today/chart":
			assert.Equal(t, "1M", r.URL.Query().Get("range"))
			_, _ = io.WriteString(w, `{"range":"1M","data":[{"time":"2026-09-19","value":100},{"time":"2026-10-19","value":110}]}`)
		}
	})
	ctx := context.Background()

	stocks, err := c.Stocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 1)

	filters, err := c.Filters(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Technology"}, filters.Sectors)

	points, err := c.Chart(ctx, "1M")
	require.NoError(t, err)
	require.Equal(t, []model.ChartPoint{{Time: "2026-09-19", Value: 100}, {Time: "2026-10-19", Value: 110}}, points)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}
