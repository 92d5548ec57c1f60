package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDecision marca una decisión con valores fuera de dominio.
// Las decisiones inválidas se rechazan en la ingesta y no se procesan.
var ErrInvalidDecision = errors.New("invalid decision")

// ErrBoundedLoss marca una violación del invariante de pérdida acotada:
// la pérdida de una posición nunca puede exceder |bet|. Es fatal para el
// modelo afectado — indica un error de signo o una serie corrupta.
var ErrBoundedLoss = errors.New("bounded-loss invariant violated")

// MarketDecision es la apuesta firmada de un modelo sobre un mercado.
// bet > 0 es posición larga en el token, bet < 0 en el lado contrario,
// bet == 0 significa que no se tomó posición.
type MarketDecision struct {
	MarketID      string
	Bet           float64 // en [-1, 1]
	EstimatedProb float64 // en [0, 1]
	Confidence    float64
}

// NewMarketDecision valida los rangos en construcción: después de la ingesta
// los estados ilegales no son representables.
func NewMarketDecision(marketID string, bet, estimatedProb, confidence float64) (MarketDecision, error) {
	if marketID == "" {
		return MarketDecision{}, fmt.Errorf("%w: empty market id", ErrInvalidDecision)
	}
	if bet < -1 || bet > 1 {
		return MarketDecision{}, fmt.Errorf("%w: market %s: bet %.4f outside [-1,1]", ErrInvalidDecision, marketID, bet)
	}
	if estimatedProb < 0 || estimatedProb > 1 {
		return MarketDecision{}, fmt.Errorf("%w: market %s: probability %.4f outside [0,1]", ErrInvalidDecision, marketID, estimatedProb)
	}
	return MarketDecision{
		MarketID:      marketID,
		Bet:           bet,
		EstimatedProb: estimatedProb,
		Confidence:    confidence,
	}, nil
}

// EventDecision agrupa las apuestas de un modelo sobre los mercados de un
// mismo evento. Tras normalizar, sum(|bet|) + UnallocatedCapital == 1.
type EventDecision struct {
	EventID            string
	Markets            []MarketDecision
	UnallocatedCapital float64
}

// NewEventDecision valida el grupo de mercados del evento.
func NewEventDecision(eventID string, markets []MarketDecision, unallocated float64) (EventDecision, error) {
	if len(markets) == 0 {
		return EventDecision{}, fmt.Errorf("%w: event %s: no markets", ErrInvalidDecision, eventID)
	}
	if unallocated < 0 {
		return EventDecision{}, fmt.Errorf("%w: event %s: negative unallocated capital", ErrInvalidDecision, eventID)
	}
	return EventDecision{
		EventID:            eventID,
		Markets:            markets,
		UnallocatedCapital: unallocated,
	}, nil
}

// AllocatedCapital devuelve sum(|bet|) sobre los mercados del evento.
func (e EventDecision) AllocatedCapital() float64 {
	var total float64
	for _, m := range e.Markets {
		total += abs(m.Bet)
	}
	return total
}

// DecisionBatch es el conjunto de eventos decididos por un modelo en una
// fecha. Las fechas por modelo son estrictamente crecientes.
type DecisionBatch struct {
	ModelID string
	Date    time.Time
	Events  []EventDecision
}

// ValidateBatchOrder comprueba que las fechas de los batches de un modelo
// sean estrictamente crecientes.
func ValidateBatchOrder(batches []DecisionBatch) error {
	for i := 1; i < len(batches); i++ {
		if !batches[i].Date.After(batches[i-1].Date) {
			return fmt.Errorf("%w: model %s: decision dates not strictly increasing (%s then %s)",
				ErrInvalidDecision, batches[i].ModelID,
				batches[i-1].Date.Format("2006-01-02"), batches[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
