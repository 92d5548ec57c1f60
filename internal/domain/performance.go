package domain

import "time"

// Horizontes fijos de retorno. "all" usa el último precio disponible.
const (
	HorizonAll = "all"
)

// DefaultHorizonDays son los horizontes fijos en días que se calculan siempre.
var DefaultHorizonDays = []int{1, 2, 7}

// CalibrationPair es el par (precio de mercado, probabilidad estimada) que
// alimenta el error de calibración (Brier).
type CalibrationPair struct {
	MarketPrice   float64
	EstimatedProb float64
}

// MarketResult es el resultado realizado de la apuesta sobre un mercado:
// serie de ganancia neta firmada hasta la siguiente decisión y retornos a
// horizonte fijo.
type MarketResult struct {
	MarketID    string
	Bet         float64
	GainSeries  Series             // ganancia neta × |bet|, desde la fecha de decisión
	Returns     map[string]float64 // horizonte ("1d", "2d", "7d", "all", ...) → retorno
	Calibration CalibrationPair
}

// EnrichedEvent agrega los resultados de los mercados de un evento.
// Los retornos por horizonte se suman (el capital del evento suma 1);
// la serie de ganancia es la MEDIA de las series de sus mercados.
type EnrichedEvent struct {
	EventID    string
	Markets    []MarketResult
	Returns    map[string]float64
	GainSeries Series
}

// EnrichedDecision es un batch de decisión con sus resultados realizados.
type EnrichedDecision struct {
	ModelID string
	Date    time.Time
	Events  []EnrichedEvent
}

// ModelPerformance es el registro agregado de rendimiento de un modelo.
type ModelPerformance struct {
	ModelID string

	// Valor de cartera en el tiempo: encadenado multiplicativo y aditivo.
	Compounding Series
	Cumulative  Series

	// Media y estadístico tipo Sharpe por horizonte, sobre los retornos
	// por evento-decisión.
	AvgReturn map[string]float64
	Sharpe    map[string]float64

	// Error medio de calibración sobre todos los pares registrados.
	Brier float64

	TradeCount int
	TradeDates []time.Time

	// Decisiones enriquecidas que alimentaron el agregado, para los
	// desgloses por evento/mercado de la capa de presentación.
	Decisions []EnrichedDecision
}

// RunResult es el resultado completo de un run de atribución.
type RunResult struct {
	RunID        string
	GeneratedAt  time.Time
	Performances []ModelPerformance

	// Questions mapea token id → pregunta legible (metadata de Gamma).
	// Puede estar vacío: el enriquecimiento es opcional.
	Questions map[string]string
}

// FlatPoint es la forma serializable (fecha, valor) que consume la capa de
// presentación.
type FlatPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Flatten convierte una serie a la lista plana fecha/valor.
func Flatten(s Series) []FlatPoint {
	out := make([]FlatPoint, len(s))
	for i, p := range s {
		out[i] = FlatPoint{Date: p.T.UTC().Format(time.RFC3339), Value: p.V}
	}
	return out
}
