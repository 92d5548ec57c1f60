package attribution

// assembler.go — une las series por token en una tabla indexada por fecha,
// una columna por mercado. Los timestamps se normalizan a fecha UTC; los
// duplicados dentro del día colapsan conservando el valor más tardío.
// Aquí no se rellenan huecos: el consumidor decide la semántica del relleno.

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// Table es la tabla unificada de precios: filas = fechas UTC ascendentes,
// columnas = tokens. Las celdas sin dato valen NaN.
type Table struct {
	Dates []time.Time
	Cols  map[string][]float64
}

// Assemble construye la tabla a partir de las series por token.
// Los tokens sin datos aportan una columna todo-NaN.
func Assemble(series map[string]domain.Series) Table {
	// Colapsar cada serie a (fecha UTC → último valor del día)
	daily := make(map[string]map[time.Time]float64, len(series))
	dateSet := make(map[time.Time]struct{})

	for token, s := range series {
		col := make(map[time.Time]float64)
		for _, p := range s.Sorted() {
			d := toUTCDate(p.T)
			col[d] = p.V // sorted: el último del día gana
			dateSet[d] = struct{}{}
		}
		daily[token] = col
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cols := make(map[string][]float64, len(series))
	for token, col := range daily {
		values := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := col[d]; ok {
				values[i] = v
			} else {
				values[i] = math.NaN()
			}
		}
		cols[token] = values
	}

	return Table{Dates: dates, Cols: cols}
}

// At devuelve el valor del token en la fecha exacta, si existe y no es NaN.
func (t Table) At(token string, date time.Time) (float64, bool) {
	col, ok := t.Cols[token]
	if !ok {
		return 0, false
	}
	i, ok := t.index(toUTCDate(date))
	if !ok {
		return 0, false
	}
	v := col[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FirstAtOrAfter devuelve el primer valor no-NaN del token con fecha >= date.
func (t Table) FirstAtOrAfter(token string, date time.Time) (time.Time, float64, bool) {
	col, ok := t.Cols[token]
	if !ok {
		return time.Time{}, 0, false
	}
	d := toUTCDate(date)
	i := sort.Search(len(t.Dates), func(i int) bool {
		return !t.Dates[i].Before(d)
	})
	for ; i < len(t.Dates); i++ {
		if !math.IsNaN(col[i]) {
			return t.Dates[i], col[i], true
		}
	}
	return time.Time{}, 0, false
}

// LastAvailable devuelve el último valor no-NaN del token.
func (t Table) LastAvailable(token string) (time.Time, float64, bool) {
	col, ok := t.Cols[token]
	if !ok {
		return time.Time{}, 0, false
	}
	for i := len(t.Dates) - 1; i >= 0; i-- {
		if !math.IsNaN(col[i]) {
			return t.Dates[i], col[i], true
		}
	}
	return time.Time{}, 0, false
}

// index busca la posición exacta de la fecha en el índice.
func (t Table) index(d time.Time) (int, bool) {
	i := sort.Search(len(t.Dates), func(i int) bool {
		return !t.Dates[i].Before(d)
	})
	if i < len(t.Dates) && t.Dates[i].Equal(d) {
		return i, true
	}
	return 0, false
}

// toUTCDate normaliza un timestamp a su fecha UTC (medianoche).
func toUTCDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
