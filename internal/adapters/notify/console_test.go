package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/polyperf/internal/adapters/notify"
	"github.com/alejandrodnm/polyperf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() domain.RunResult {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.RunResult{
		RunID:       "0f3a9c21-dead-beef-0000-000000000000",
		GeneratedAt: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC),
		Questions:   map[string]string{"tok-1": "Will it rain tomorrow?"},
		Performances: []domain.ModelPerformance{{
			ModelID: "gpt",
			Compounding: domain.Series{
				{T: date, V: 1.0},
				{T: date.AddDate(0, 0, 1), V: 1.12},
			},
			Cumulative: domain.Series{
				{T: date, V: 1.0},
				{T: date.AddDate(0, 0, 1), V: 1.12},
			},
			AvgReturn:  map[string]float64{"1d": 0.12, "all": 0.12},
			Sharpe:     map[string]float64{"1d": 0, "all": 0},
			Brier:      0.04,
			TradeCount: 1,
			TradeDates: []time.Time{date},
			Decisions: []domain.EnrichedDecision{{
				ModelID: "gpt",
				Date:    date,
				Events: []domain.EnrichedEvent{{
					EventID: "ev-1",
					Returns: map[string]float64{"all": 0.12},
					Markets: []domain.MarketResult{{
						MarketID:    "tok-1",
						Bet:         0.5,
						Returns:     map[string]float64{"all": 0.12},
						Calibration: domain.CalibrationPair{MarketPrice: 0.5, EstimatedProb: 0.7},
					}},
				}},
			}},
		}},
	}
}

func TestConsole_SummaryTable(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.Report(context.Background(), sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "MODEL PERFORMANCE")
	assert.Contains(t, out, "0f3a9c21", "run id shortened in the header")
	assert.Contains(t, out, "gpt")
	assert.Contains(t, out, "1.1200")
	assert.Contains(t, out, "+0.1200")
	assert.Contains(t, out, "0.0400")
	// Sin breakdown no aparece el desglose
	assert.NotContains(t, out, "decision dates")
}

func TestConsole_BreakdownResolvesQuestions(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, c.Report(context.Background(), sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "gpt: 1 decision dates")
	assert.Contains(t, out, "Will it rain tomorrow?")
	assert.Contains(t, out, "2024-03-01")
}

func TestConsole_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	result := domain.RunResult{GeneratedAt: time.Now()}
	require.NoError(t, c.Report(context.Background(), result))

	assert.Contains(t, buf.String(), "no model performance to report")
}

func TestJSONFile_WritesFlatSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	r := notify.NewJSONFile(path)

	require.NoError(t, r.Report(context.Background(), sampleResult()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var out struct {
		RunID  string `json:"run_id"`
		Models []struct {
			ModelID     string `json:"model_id"`
			Compounding []struct {
				Date  string  `json:"date"`
				Value float64 `json:"value"`
			} `json:"compounding"`
			TradeDates []string `json:"trade_dates"`
			Decisions  []struct {
				Events []struct {
					Markets []struct {
						MarketID string `json:"market_id"`
						Question string `json:"question"`
					} `json:"markets"`
				} `json:"events"`
			} `json:"decisions"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, "0f3a9c21-dead-beef-0000-000000000000", out.RunID)
	require.Len(t, out.Models, 1)
	m := out.Models[0]
	assert.Equal(t, "gpt", m.ModelID)

	require.Len(t, m.Compounding, 2)
	assert.Equal(t, "2024-03-01T00:00:00Z", m.Compounding[0].Date)
	assert.Equal(t, 1.12, m.Compounding[1].Value)

	assert.Equal(t, []string{"2024-03-01"}, m.TradeDates)

	// La pregunta de Gamma viaja hasta el mercado serializado
	require.Len(t, m.Decisions, 1)
	assert.Equal(t, "Will it rain tomorrow?", m.Decisions[0].Events[0].Markets[0].Question)
}
