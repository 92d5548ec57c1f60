package domain

import (
	"sort"
	"time"
)

// Point es una observación (timestamp, precio) de la serie de un token.
type Point struct {
	T time.Time
	V float64
}

// Series es una serie de precios ordenada por timestamp ascendente.
// Los precios de mercados binarios viven en [0,1].
type Series []Point

// Sorted devuelve una copia ordenada por timestamp ascendente.
// Si hay timestamps duplicados, gana el que aparece más tarde en el slice.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].T.Before(out[j].T)
	})
	// Colapsar duplicados exactos conservando el último
	dedup := out[:0]
	for i, p := range out {
		if i+1 < len(out) && out[i+1].T.Equal(p.T) {
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

// Merge une dos series por timestamp. Cuando ambas tienen un punto en el
// mismo instante gana `newer` (la serie obtenida más recientemente).
// El resultado queda ordenado. Nunca elimina puntos: solo añade o reemplaza.
func (s Series) Merge(newer Series) Series {
	if len(s) == 0 {
		return newer.Sorted()
	}
	if len(newer) == 0 {
		return s.Sorted()
	}

	byTS := make(map[int64]Point, len(s)+len(newer))
	for _, p := range s {
		byTS[p.T.UnixNano()] = p
	}
	for _, p := range newer {
		byTS[p.T.UnixNano()] = p
	}

	out := make(Series, 0, len(byTS))
	for _, p := range byTS {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].T.Before(out[j].T)
	})
	return out
}

// First devuelve el primer punto de la serie.
func (s Series) First() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[0], true
}

// Last devuelve el último punto de la serie.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// At devuelve el valor exacto en el instante t.
func (s Series) At(t time.Time) (float64, bool) {
	for _, p := range s {
		if p.T.Equal(t) {
			return p.V, true
		}
		if p.T.After(t) {
			break
		}
	}
	return 0, false
}

// FirstAtOrAfter devuelve el primer punto cuyo timestamp es >= t.
func (s Series) FirstAtOrAfter(t time.Time) (Point, bool) {
	i := sort.Search(len(s), func(i int) bool {
		return !s[i].T.Before(t)
	})
	if i == len(s) {
		return Point{}, false
	}
	return s[i], true
}

// SliceRange devuelve la sub-serie con from <= T < to.
// Un `to` en cero significa sin límite superior.
func (s Series) SliceRange(from, to time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool {
		return !s[i].T.Before(from)
	})
	hi := len(s)
	if !to.IsZero() {
		hi = sort.Search(len(s), func(i int) bool {
			return !s[i].T.Before(to)
		})
	}
	if lo >= hi {
		return nil
	}
	out := make(Series, hi-lo)
	copy(out, s[lo:hi])
	return out
}
