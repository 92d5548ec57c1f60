package attribution

// aggregator.go — agrega decisiones enriquecidas a un registro de
// rendimiento por modelo: series de cartera compuesta (×) y acumulada (+),
// media y Sharpe por horizonte, error de calibración y conteo de trades.
//
// El procesado es secuencial por diseño: el valor final de cada batch es el
// punto de partida del siguiente (el compounding tiene estado temporal).

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// ErrSeriesIntegrity marca timestamps duplicados entre batches con valores
// distintos: un error de integridad de datos, no una condición recuperable.
var ErrSeriesIntegrity = errors.New("duplicate timestamp with conflicting values")

// dupEpsilon es la tolerancia al comparar valores en timestamps duplicados.
const dupEpsilon = 1e-9

// Modos de cálculo del error de calibración.
const (
	BrierSquared  = "squared"
	BrierAbsolute = "absolute"
)

// AggregateConfig controla el agregado.
type AggregateConfig struct {
	BrierMode          string  // squared | absolute
	CumulativeBaseline float64 // valor inicial de la serie acumulada
}

// DefaultAggregateConfig devuelve la configuración estándar.
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{BrierMode: BrierSquared, CumulativeBaseline: 1.0}
}

// Aggregate construye el ModelPerformance de un modelo a partir de sus
// decisiones enriquecidas ordenadas por fecha.
func Aggregate(modelID string, decisions []domain.EnrichedDecision, cfg AggregateConfig) (domain.ModelPerformance, error) {
	if cfg.BrierMode == "" {
		cfg.BrierMode = BrierSquared
	}

	compounding, err := chainSeries(decisions, 1.0, func(gain, current float64) float64 {
		return (gain + 1) * current
	})
	if err != nil {
		return domain.ModelPerformance{}, fmt.Errorf("attribution.Aggregate %s: compounding: %w", modelID, err)
	}

	cumulative, err := chainSeries(decisions, cfg.CumulativeBaseline, func(gain, current float64) float64 {
		return gain + current
	})
	if err != nil {
		return domain.ModelPerformance{}, fmt.Errorf("attribution.Aggregate %s: cumulative: %w", modelID, err)
	}

	byHorizon := collectEventReturns(decisions)
	avg := make(map[string]float64, len(byHorizon))
	sharpe := make(map[string]float64, len(byHorizon))
	for h, returns := range byHorizon {
		avg[h] = mean(returns)
		sharpe[h] = sharpeRatio(returns)
	}

	perf := domain.ModelPerformance{
		ModelID:     modelID,
		Compounding: compounding,
		Cumulative:  cumulative,
		AvgReturn:   avg,
		Sharpe:      sharpe,
		Brier:       brier(decisions, cfg.BrierMode),
		TradeCount:  tradeCount(decisions),
		TradeDates:  tradeDates(decisions),
		Decisions:   decisions,
	}
	return perf, nil
}

// chainSeries encadena las series de ganancia de cada batch partiendo de
// start, aplicando apply(gain, current) punto a punto y arrastrando el valor
// final al siguiente batch. La serie de un batch es la media de las series
// de sus eventos. Timestamps duplicados entre batches se deduplican
// conservando el primero; si discrepan en valor es ErrSeriesIntegrity.
func chainSeries(decisions []domain.EnrichedDecision, start float64, apply func(gain, current float64) float64) (domain.Series, error) {
	current := start
	var out domain.Series
	seen := make(map[int64]float64)

	for _, dec := range decisions {
		batchGains := batchGainSeries(dec)
		if len(batchGains) == 0 {
			continue
		}

		var lastValue = current
		for _, p := range batchGains {
			v := apply(p.V, current)
			k := p.T.UnixNano()
			if prev, dup := seen[k]; dup {
				if math.Abs(prev-v) > dupEpsilon {
					return nil, fmt.Errorf("%w: at %s (%.9f vs %.9f)",
						ErrSeriesIntegrity, p.T.Format(time.RFC3339), prev, v)
				}
				continue
			}
			seen[k] = v
			out = append(out, domain.Point{T: p.T, V: v})
			lastValue = v
		}
		current = lastValue
	}

	return out.Sorted(), nil
}

// batchGainSeries es la serie de ganancia del batch: la media de las series
// (ya media-por-mercado) de sus eventos.
func batchGainSeries(dec domain.EnrichedDecision) domain.Series {
	series := make([]domain.Series, 0, len(dec.Events))
	for _, e := range dec.Events {
		if len(e.GainSeries) > 0 {
			series = append(series, e.GainSeries)
		}
	}
	return meanSeries(series)
}

// collectEventReturns junta los retornos por horizonte de todos los eventos.
func collectEventReturns(decisions []domain.EnrichedDecision) map[string][]float64 {
	out := make(map[string][]float64)
	for _, dec := range decisions {
		for _, e := range dec.Events {
			for h, r := range e.Returns {
				out[h] = append(out[h], r)
			}
		}
	}
	return out
}

// brier calcula el error medio de calibración sobre todos los pares
// (precio de mercado, probabilidad estimada) registrados.
func brier(decisions []domain.EnrichedDecision, mode string) float64 {
	var sum float64
	var n int
	for _, dec := range decisions {
		for _, e := range dec.Events {
			for _, m := range e.Markets {
				diff := m.Calibration.MarketPrice - m.Calibration.EstimatedProb
				if mode == BrierAbsolute {
					sum += math.Abs(diff)
				} else {
					sum += diff * diff
				}
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// tradeCount cuenta las apuestas de mercado procesadas (bet != 0).
func tradeCount(decisions []domain.EnrichedDecision) int {
	n := 0
	for _, dec := range decisions {
		for _, e := range dec.Events {
			n += len(e.Markets)
		}
	}
	return n
}

// tradeDates devuelve las fechas de decisión distintas, ordenadas, con al
// menos una apuesta procesada.
func tradeDates(decisions []domain.EnrichedDecision) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, dec := range decisions {
		traded := false
		for _, e := range dec.Events {
			if len(e.Markets) > 0 {
				traded = true
				break
			}
		}
		if !traded {
			continue
		}
		d := toUTCDate(dec.Date)
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// mean es la media aritmética simple.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sharpeRatio devuelve media / desviación estándar muestral (ddof=1).
// Definido como 0 con menos de 2 muestras o desviación 0/NaN. Sin
// anualizar: el estadístico queda en las unidades de su horizonte.
func sharpeRatio(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)-1))
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return m / sd
}
