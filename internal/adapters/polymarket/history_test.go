package polymarket_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/polyperf/internal/adapters/polymarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// retry rápido para tests: sin esperas reales
var testRetry = polymarket.RetryPolicy{MaxAttempts: 2, BaseWait: time.Millisecond}

func TestFetchPriceHistory_ParsesAndDropsOutOfRange(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"history":[
			{"t":1709251200,"p":0.42},
			{"t":1709337600,"p":1.5},
			{"t":1709424000,"p":0.55}
		]}`)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	start := time.Unix(1709251200, 0).UTC()
	series, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start.Add(3*24*time.Hour), 1440)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "market=tok-1")
	assert.Contains(t, gotQuery, "fidelity=1440")

	// El punto con precio 1.5 se descarta
	require.Len(t, series, 2)
	assert.Equal(t, 0.42, series[0].V)
	assert.Equal(t, 0.55, series[1].V)
	assert.True(t, series[0].T.Equal(start))
}

func TestFetchPriceHistory_SplitsLongRangeIntoWindows(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		// Un punto distinto por ventana para verificar la concatenación
		fmt.Fprintf(w, `{"history":[{"t":%d,"p":0.5}]}`, 1709251200+int64(n)*86400)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	start := time.Unix(1709251200, 0).UTC()
	// 30 días excede dos veces la ventana máxima (~15 días) ⇒ 3 requests
	series, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start.Add(30*24*time.Hour), 1440)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Len(t, series, 3)
}

func TestFetchPriceHistory_FallsBackWithoutFidelity(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		if r.URL.Query().Has("fidelity") {
			fmt.Fprint(w, `{"history":[]}`)
			return
		}
		fmt.Fprint(w, `{"history":[{"t":1709251200,"p":0.6}]}`)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	start := time.Unix(1709251200, 0).UTC()
	series, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start.Add(24*time.Hour), 360)
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "fidelity=360")
	assert.NotContains(t, queries[1], "fidelity")
	require.Len(t, series, 1)
	assert.Equal(t, 0.6, series[0].V)
}

func TestFetchPriceHistory_RetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"history":[{"t":1709251200,"p":0.5}]}`)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	start := time.Unix(1709251200, 0).UTC()
	series, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start.Add(24*time.Hour), 1440)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.Len(t, series, 1)
}

func TestFetchPriceHistory_ClientErrorDoesNotRetry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad token", http.StatusBadRequest)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	start := time.Unix(1709251200, 0).UTC()
	_, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start.Add(24*time.Hour), 1440)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Contains(t, err.Error(), "400")
}

func TestFetchPriceHistory_EmptyRangeAndToken(t *testing.T) {
	c := polymarket.NewClient("http://unused", "http://unused", testRetry)
	start := time.Unix(1709251200, 0).UTC()

	series, err := c.FetchPriceHistory(context.Background(), "tok-1", start, start, 1440)
	require.NoError(t, err)
	assert.Empty(t, series, "end not after start returns nothing without touching the network")

	_, err = c.FetchPriceHistory(context.Background(), "", start, start.Add(time.Hour), 1440)
	assert.Error(t, err)
}

func TestFetchMarketQuestions_ResolvesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "clob_token_ids=tok-1,tok-2")
		fmt.Fprint(w, `[
			{"conditionId":"c1","question":"Will it rain?","clobTokenIds":"[\"tok-1\",\"tok-2\"]"},
			{"conditionId":"c2","question":"broken","clobTokenIds":"not json"}
		]`)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	got, err := c.FetchMarketQuestions(context.Background(), []string{"tok-1", "tok-2"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"tok-1": "Will it rain?",
		"tok-2": "Will it rain?",
	}, got)
}

func TestFetchMarketQuestions_FailedBatchIsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	c := polymarket.NewClient(server.URL, server.URL, testRetry)
	got, err := c.FetchMarketQuestions(context.Background(), []string{"tok-1"})
	require.NoError(t, err, "metadata enrichment is best effort")
	assert.Empty(t, got)
}
