package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// priceHistoryResponse es la respuesta de GET /prices-history.
type priceHistoryResponse struct {
	History []pricePoint `json:"history"`
}

// pricePoint es un punto raw (t unix-segundos, p precio).
type pricePoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata legible de un mercado.
// clobTokenIds llega como un string con un array JSON dentro.
type gammaMarket struct {
	ConditionID  string      `json:"conditionId"`
	Question     string      `json:"question"`
	Slug         string      `json:"slug"`
	ClobTokenIDs string      `json:"clobTokenIds"`
	Volume       json.Number `json:"volume"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}
