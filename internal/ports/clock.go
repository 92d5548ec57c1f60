package ports

import "time"

// Clock abstrae la lectura de reloj para que staleness y cierre de mercados
// sean deterministas en tests.
type Clock interface {
	Now() time.Time
}

// SystemClock es el reloj real.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
