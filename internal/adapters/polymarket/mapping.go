package polymarket

import (
	"encoding/json"
	"time"

	"github.com/alejandrodnm/polyperf/internal/domain"
)

// mapPriceHistory convierte los puntos raw a domain.Series.
// Descarta precios fuera de [0,1] — el invariante de dominio los prohíbe y
// la API ocasionalmente devuelve basura en mercados recién listados.
func mapPriceHistory(raw []pricePoint) domain.Series {
	s := make(domain.Series, 0, len(raw))
	for _, p := range raw {
		if p.P < 0 || p.P > 1 {
			continue
		}
		s = append(s, domain.Point{T: time.Unix(p.T, 0).UTC(), V: p.P})
	}
	return s
}

// tokenIDsOf parsea el campo clobTokenIds de Gamma (array JSON en string).
func tokenIDsOf(gm gammaMarket) []string {
	if gm.ClobTokenIDs == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &ids); err != nil {
		return nil
	}
	return ids
}
