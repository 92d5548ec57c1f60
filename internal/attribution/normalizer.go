package attribution

// normalizer.go — re-escalado de capital a nivel de evento.
//
// Dos modos:
//   - legacy: todo (bets + capital sin asignar) se escala para que el total
//     asignado del evento sume 1.
//   - kelly: cada bet se redimensiona con el criterio de Kelly contra el
//     precio de mercado en la fecha de decisión; solo las bets se re-escalan
//     al presupuesto disponible (1 − unallocated), el unallocated no se toca.

import (
	"math"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// Modos de normalización.
const (
	NormalizeModeNone   = "none"
	NormalizeModeLegacy = "legacy"
	NormalizeModeKelly  = "kelly"
)

// NormalizeLegacy escala bets y capital sin asignar por
// 1 / (sum(|bet|) + unallocated) para que el total del evento sea 1.
func NormalizeLegacy(e *domain.EventDecision) {
	total := e.AllocatedCapital() + e.UnallocatedCapital
	if total <= 0 {
		return
	}
	for i := range e.Markets {
		e.Markets[i].Bet /= total
	}
	e.UnallocatedCapital /= total
}

// NormalizeKelly redimensiona cada bet con la fracción de Kelly firmada
// contra el precio de mercado en la fecha de decisión. Los mercados sin
// precio disponible conservan su bet original y no participan del re-escalado.
func NormalizeKelly(e *domain.EventDecision, prices map[string]float64) {
	budget := 1 - e.UnallocatedCapital
	if budget < 0 {
		budget = 0
	}

	fractions := make([]float64, len(e.Markets))
	var sized float64
	resized := make([]bool, len(e.Markets))

	for i, m := range e.Markets {
		price, ok := prices[m.MarketID]
		if !ok {
			continue
		}
		f := kellyFraction(m.EstimatedProb, price)
		fractions[i] = f
		resized[i] = true
		sized += math.Abs(f)
	}

	if sized == 0 {
		return
	}

	// Re-escalar solo las bets redimensionadas para caber en el presupuesto.
	scale := budget / sized
	for i := range e.Markets {
		if resized[i] {
			e.Markets[i].Bet = fractions[i] * scale
		}
	}
}

// kellyFraction devuelve la fracción de Kelly firmada para una probabilidad
// estimada frente al precio de mercado. Edge positivo apuesta a favor
// (edge / (1 − price)), edge negativo apuesta en contra ((−edge) / price,
// devuelto en negativo). El resultado por lado se recorta a [0,1].
func kellyFraction(estimatedProb, marketPrice float64) float64 {
	edge := estimatedProb - marketPrice
	switch {
	case edge > 0 && marketPrice < 1:
		return clip01(edge / (1 - marketPrice))
	case edge < 0 && marketPrice > 0:
		return -clip01(-edge / marketPrice)
	default:
		return 0
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
