package attribution_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/polyperf/internal/attribution"
	"github.com/alejandrodnm/polyperf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func mkEnriched(date time.Time, gains domain.Series, returns map[string]float64) domain.EnrichedDecision {
	return domain.EnrichedDecision{
		ModelID: "m1",
		Date:    date,
		Events: []domain.EnrichedEvent{{
			EventID:    "ev",
			GainSeries: gains,
			Returns:    returns,
			Markets:    []domain.MarketResult{{MarketID: "tok", Bet: 1.0}},
		}},
	}
}

func seriesValue(t *testing.T, s domain.Series, at time.Time) float64 {
	t.Helper()
	v, ok := s.At(at)
	require.True(t, ok, "missing point at %s", at)
	return v
}

func TestAggregate_CompoundingChainsAcrossBatches(t *testing.T) {
	decisions := []domain.EnrichedDecision{
		mkEnriched(day(1), domain.Series{
			{T: day(1), V: 0.0},
			{T: day(2), V: 0.1},
		}, nil),
		mkEnriched(day(3), domain.Series{
			{T: day(3), V: 0.0},
			{T: day(4), V: 0.2},
		}, nil),
	}

	perf, err := attribution.Aggregate("m1", decisions, attribution.DefaultAggregateConfig())
	require.NoError(t, err)

	// Multiplicativo: el valor final del batch 1 (1.1) es la base del batch 2
	assert.InDelta(t, 1.0, seriesValue(t, perf.Compounding, day(1)), 1e-9)
	assert.InDelta(t, 1.1, seriesValue(t, perf.Compounding, day(2)), 1e-9)
	assert.InDelta(t, 1.1, seriesValue(t, perf.Compounding, day(3)), 1e-9)
	assert.InDelta(t, 1.32, seriesValue(t, perf.Compounding, day(4)), 1e-9)

	// Aditivo: gain + valor arrastrado, partiendo de 1.0
	assert.InDelta(t, 1.0, seriesValue(t, perf.Cumulative, day(1)), 1e-9)
	assert.InDelta(t, 1.1, seriesValue(t, perf.Cumulative, day(2)), 1e-9)
	assert.InDelta(t, 1.1, seriesValue(t, perf.Cumulative, day(3)), 1e-9)
	assert.InDelta(t, 1.3, seriesValue(t, perf.Cumulative, day(4)), 1e-9)
}

func TestAggregate_CumulativeBaselineZero(t *testing.T) {
	decisions := []domain.EnrichedDecision{
		mkEnriched(day(1), domain.Series{{T: day(1), V: 0.0}, {T: day(2), V: 0.1}}, nil),
	}

	perf, err := attribution.Aggregate("m1", decisions, attribution.AggregateConfig{
		CumulativeBaseline: 0,
	})
	require.NoError(t, err)

	// Neto de base: la serie acumulada empieza en 0
	assert.InDelta(t, 0.0, seriesValue(t, perf.Cumulative, day(1)), 1e-9)
	assert.InDelta(t, 0.1, seriesValue(t, perf.Cumulative, day(2)), 1e-9)
}

func TestAggregate_DuplicateTimestampKeepsFirst(t *testing.T) {
	// El batch 2 repite el día 2 con ganancia 0: mismo valor de cartera,
	// se deduplica sin error.
	decisions := []domain.EnrichedDecision{
		mkEnriched(day(1), domain.Series{{T: day(1), V: 0.0}, {T: day(2), V: 0.1}}, nil),
		mkEnriched(day(2), domain.Series{{T: day(2), V: 0.0}, {T: day(3), V: 0.05}}, nil),
	}

	perf, err := attribution.Aggregate("m1", decisions, attribution.DefaultAggregateConfig())
	require.NoError(t, err)

	require.Len(t, perf.Compounding, 3)
	assert.InDelta(t, 1.1, seriesValue(t, perf.Compounding, day(2)), 1e-9)
	assert.InDelta(t, 1.1*1.05, seriesValue(t, perf.Compounding, day(3)), 1e-9)
}

func TestAggregate_DuplicateTimestampConflictFails(t *testing.T) {
	decisions := []domain.EnrichedDecision{
		mkEnriched(day(1), domain.Series{{T: day(1), V: 0.0}, {T: day(2), V: 0.1}}, nil),
		mkEnriched(day(2), domain.Series{{T: day(2), V: 0.05}}, nil),
	}

	_, err := attribution.Aggregate("m1", decisions, attribution.DefaultAggregateConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, attribution.ErrSeriesIntegrity)
}

func TestAggregate_AvgAndSharpePerHorizon(t *testing.T) {
	decisions := []domain.EnrichedDecision{
		mkEnriched(day(1), nil, map[string]float64{"1d": 0.1}),
		mkEnriched(day(2), nil, map[string]float64{"1d": 0.2}),
		mkEnriched(day(3), nil, map[string]float64{"1d": 0.3}),
	}

	perf, err := attribution.Aggregate("m1", decisions, attribution.DefaultAggregateConfig())
	require.NoError(t, err)

	assert.InDelta(t, 0.2, perf.AvgReturn["1d"], 1e-9)
	// std muestral de [0.1, 0.2, 0.3] = 0.1 ⇒ Sharpe = 0.2/0.1 = 2
	assert.InDelta(t, 2.0, perf.Sharpe["1d"], 1e-9)
}

func TestAggregate_SharpeEdgeCases(t *testing.T) {
	// Una sola muestra ⇒ 0
	one := []domain.EnrichedDecision{
		mkEnriched(day(1), nil, map[string]float64{"1d": 0.5}),
	}
	perf, err := attribution.Aggregate("m1", one, attribution.DefaultAggregateConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, perf.Sharpe["1d"])

	// Retornos constantes ⇒ desviación 0 ⇒ 0
	flat := []domain.EnrichedDecision{
		mkEnriched(day(1), nil, map[string]float64{"1d": 0.5}),
		mkEnriched(day(2), nil, map[string]float64{"1d": 0.5}),
	}
	perf, err = attribution.Aggregate("m1", flat, attribution.DefaultAggregateConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, perf.Sharpe["1d"])
	assert.InDelta(t, 0.5, perf.AvgReturn["1d"], 1e-9)
}

func TestAggregate_BrierModes(t *testing.T) {
	mk := func(price float64) domain.EnrichedDecision {
		return domain.EnrichedDecision{
			ModelID: "m1",
			Date:    day(1),
			Events: []domain.EnrichedEvent{{
				EventID: "ev",
				Markets: []domain.MarketResult{{
					MarketID:    "tok",
					Bet:         1.0,
					Calibration: domain.CalibrationPair{MarketPrice: price, EstimatedProb: 0.9},
				}},
			}},
		}
	}
	decisions := []domain.EnrichedDecision{mk(0.6), mk(0.8), mk(0.9)}

	perf, err := attribution.Aggregate("m1", decisions, attribution.AggregateConfig{
		BrierMode:          attribution.BrierSquared,
		CumulativeBaseline: 1.0,
	})
	require.NoError(t, err)
	// (0.09 + 0.01 + 0) / 3
	assert.InDelta(t, 0.0333333333, perf.Brier, 1e-9)

	perf, err = attribution.Aggregate("m1", decisions, attribution.AggregateConfig{
		BrierMode:          attribution.BrierAbsolute,
		CumulativeBaseline: 1.0,
	})
	require.NoError(t, err)
	// (0.3 + 0.1 + 0) / 3
	assert.InDelta(t, 0.1333333333, perf.Brier, 1e-9)
}

func TestAggregate_TradeCountAndDates(t *testing.T) {
	decisions := []domain.EnrichedDecision{
		{
			ModelID: "m1",
			Date:    day(1).Add(9 * time.Hour),
			Events: []domain.EnrichedEvent{{
				EventID: "ev1",
				Markets: []domain.MarketResult{
					{MarketID: "a", Bet: 0.5},
					{MarketID: "b", Bet: -0.5},
				},
			}},
		},
		{
			ModelID: "m1",
			Date:    day(2),
			// Sin mercados procesados: no cuenta como fecha con trades
			Events: []domain.EnrichedEvent{{EventID: "ev2"}},
		},
		mkEnriched(day(3), nil, nil),
	}

	perf, err := attribution.Aggregate("m1", decisions, attribution.DefaultAggregateConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, perf.TradeCount)
	require.Len(t, perf.TradeDates, 2)
	assert.True(t, perf.TradeDates[0].Equal(day(1)), "decision timestamp collapses to its UTC date")
	assert.True(t, perf.TradeDates[1].Equal(day(3)))
}

func TestAggregate_EmptyDecisions(t *testing.T) {
	perf, err := attribution.Aggregate("m1", nil, attribution.DefaultAggregateConfig())
	require.NoError(t, err)

	assert.Empty(t, perf.Compounding)
	assert.Empty(t, perf.Cumulative)
	assert.Equal(t, 0, perf.TradeCount)
	assert.Equal(t, 0.0, perf.Brier)
}
