package attribution

// enricher.go — convierte decisiones en resultados realizados contra la
// tabla de precios unificada.
//
// Por cada apuesta sobre un mercado:
//   1. Serie firmada: precio raw si bet > 0, (1 − precio) si bet < 0.
//   2. Entrada = precio firmado en la fecha de decisión; sin dato o cero,
//      el mercado se salta (con log), nunca aborta el run.
//   3. Ganancia(t) = (firmado(t) / entrada − 1) × |bet| desde la fecha de
//      decisión hasta la siguiente decisión del modelo (exclusiva).
//   4. Retornos a horizonte fijo (1d, 2d, 7d, all, custom) con fallback al
//      último precio disponible.
//   5. Par de calibración (precio de mercado, probabilidad estimada).
//
// Invariante de pérdida acotada: ganancia(t) >= −|bet| siempre. Violarlo es
// fatal para el modelo — indica error de signo o serie corrupta.

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// lossEpsilon absorbe ruido de coma flotante en el chequeo de pérdida acotada.
const lossEpsilon = 1e-9

// Enricher calcula resultados realizados sobre una tabla de precios.
type Enricher struct {
	table    Table
	horizons []int // días, ordenados; "all" se calcula siempre aparte
}

// NewEnricher crea un Enricher con los horizontes fijos por defecto más los
// customDays del caller (deduplicados).
func NewEnricher(table Table, customDays []int) *Enricher {
	seen := make(map[int]struct{})
	var horizons []int
	for _, d := range append(append([]int{}, domain.DefaultHorizonDays...), customDays...) {
		if d <= 0 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		horizons = append(horizons, d)
	}
	sort.Ints(horizons)
	return &Enricher{table: table, horizons: horizons}
}

// EnrichModel procesa los batches ordenados por fecha de un modelo.
// Devuelve error (fatal para el modelo) si se viola la pérdida acotada.
func (e *Enricher) EnrichModel(batches []domain.DecisionBatch) ([]domain.EnrichedDecision, error) {
	out := make([]domain.EnrichedDecision, 0, len(batches))

	for i, batch := range batches {
		// Límite superior exclusivo: la fecha de la siguiente decisión,
		// o cero (hasta el final) si es la más reciente.
		var next time.Time
		if i+1 < len(batches) {
			next = batches[i+1].Date
		}

		enriched := domain.EnrichedDecision{
			ModelID: batch.ModelID,
			Date:    batch.Date,
		}
		for _, event := range batch.Events {
			ee, err := e.enrichEvent(batch.ModelID, batch.Date, next, event)
			if err != nil {
				return nil, err
			}
			if len(ee.Markets) == 0 {
				continue
			}
			enriched.Events = append(enriched.Events, ee)
		}
		out = append(out, enriched)
	}

	return out, nil
}

// enrichEvent procesa los mercados de un evento y agrega:
// retornos por horizonte sumados (el capital del evento suma 1) y serie de
// ganancia = MEDIA de las series de sus mercados.
func (e *Enricher) enrichEvent(modelID string, date, next time.Time, event domain.EventDecision) (domain.EnrichedEvent, error) {
	ee := domain.EnrichedEvent{
		EventID: event.EventID,
		Returns: make(map[string]float64),
	}

	var gainSeries []domain.Series
	for _, m := range event.Markets {
		result, ok, err := e.enrichMarket(modelID, date, next, m)
		if err != nil {
			return domain.EnrichedEvent{}, err
		}
		if !ok {
			continue
		}
		ee.Markets = append(ee.Markets, result)
		gainSeries = append(gainSeries, result.GainSeries)
		for h, r := range result.Returns {
			ee.Returns[h] += r
		}
	}

	ee.GainSeries = meanSeries(gainSeries)
	return ee, nil
}

// enrichMarket calcula el resultado realizado de una apuesta. ok=false
// significa mercado saltado: bet cero o sin precio en la fecha de decisión.
func (e *Enricher) enrichMarket(modelID string, date, next time.Time, m domain.MarketDecision) (domain.MarketResult, bool, error) {
	if m.Bet == 0 {
		return domain.MarketResult{}, false, nil
	}

	rawEntry, ok := e.table.At(m.MarketID, date)
	if !ok {
		slog.Warn("no price data at decision date, skipping market",
			"model", modelID,
			"market", m.MarketID,
			"date", date.Format("2006-01-02"),
		)
		return domain.MarketResult{}, false, nil
	}

	entry := signedPrice(rawEntry, m.Bet)
	if entry == 0 {
		slog.Warn("signed entry price is zero, skipping market",
			"model", modelID,
			"market", m.MarketID,
			"date", date.Format("2006-01-02"),
		)
		return domain.MarketResult{}, false, nil
	}

	size := math.Abs(m.Bet)

	gains, err := e.gainSeries(modelID, date, next, m, entry, size)
	if err != nil {
		return domain.MarketResult{}, false, err
	}

	result := domain.MarketResult{
		MarketID:   m.MarketID,
		Bet:        m.Bet,
		GainSeries: gains,
		Returns:    e.horizonReturns(date, m, entry, size),
		Calibration: domain.CalibrationPair{
			MarketPrice:   rawEntry,
			EstimatedProb: m.EstimatedProb,
		},
	}
	return result, true, nil
}

// gainSeries construye la serie de ganancia neta desde la fecha de decisión
// hasta next (exclusivo) o hasta el final de la tabla.
func (e *Enricher) gainSeries(modelID string, date, next time.Time, m domain.MarketDecision, entry, size float64) (domain.Series, error) {
	col, ok := e.table.Cols[m.MarketID]
	if !ok {
		return nil, nil
	}

	from := toUTCDate(date)
	var to time.Time
	if !next.IsZero() {
		to = toUTCDate(next)
	}

	var gains domain.Series
	for i, d := range e.table.Dates {
		if d.Before(from) {
			continue
		}
		if !to.IsZero() && !d.Before(to) {
			break
		}
		if math.IsNaN(col[i]) {
			continue
		}

		sp := signedPrice(col[i], m.Bet)
		gain := (sp/entry - 1) * size
		if gain < -size-lossEpsilon {
			return nil, fmt.Errorf("%w: model %s market %s at %s: gain %.6f < -|bet| %.6f",
				domain.ErrBoundedLoss, modelID, m.MarketID, d.Format("2006-01-02"), gain, size)
		}
		gains = append(gains, domain.Point{T: d, V: gain})
	}

	return gains, nil
}

// horizonReturns calcula los retornos a horizonte fijo. Para cada horizonte
// se usa el primer precio disponible en o después de date+h, con fallback al
// último disponible si el mercado no tiene datos más allá.
func (e *Enricher) horizonReturns(date time.Time, m domain.MarketDecision, entry, size float64) map[string]float64 {
	returns := make(map[string]float64, len(e.horizons)+1)

	for _, days := range e.horizons {
		target := toUTCDate(date).AddDate(0, 0, days)
		_, raw, ok := e.table.FirstAtOrAfter(m.MarketID, target)
		if !ok {
			_, raw, ok = e.table.LastAvailable(m.MarketID)
		}
		if !ok {
			continue
		}
		sp := signedPrice(raw, m.Bet)
		returns[horizonName(days)] = (sp/entry - 1) * size
	}

	if _, raw, ok := e.table.LastAvailable(m.MarketID); ok {
		sp := signedPrice(raw, m.Bet)
		returns[domain.HorizonAll] = (sp/entry - 1) * size
	}

	return returns
}

// signedPrice orienta el precio al lado de la apuesta: raw si larga,
// 1 − raw si corta.
func signedPrice(raw, bet float64) float64 {
	if bet < 0 {
		return 1 - raw
	}
	return raw
}

// horizonName formatea un horizonte en días como key de map ("1d", "7d", ...).
func horizonName(days int) string {
	return fmt.Sprintf("%dd", days)
}

// meanSeries promedia punto a punto las series dadas: en cada fecha, la media
// sobre las series que tienen valor. Normaliza por el número de mercados
// operados en el evento.
func meanSeries(series []domain.Series) domain.Series {
	if len(series) == 0 {
		return nil
	}
	if len(series) == 1 {
		return series[0]
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	times := make(map[int64]time.Time)

	for _, s := range series {
		for _, p := range s {
			k := p.T.UnixNano()
			sums[k] += p.V
			counts[k]++
			times[k] = p.T
		}
	}

	out := make(domain.Series, 0, len(sums))
	for k, sum := range sums {
		out = append(out, domain.Point{T: times[k], V: sum / float64(counts[k])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T.Before(out[j].T) })
	return out
}
