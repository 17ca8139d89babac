package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/marketdata"
)

type Response[T any] struct {
	Data T    `json:"data"`
	Meta Meta `json:"meta"`
}

type Meta struct {
	Ticker     string  `json:"ticker,omitempty"`
	Expiry     string  `json:"expiry,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	OptionType string  `json:"option_type,omitempty"`
	Dimension  string  `json:"dimension,omitempty"`
	Points     int     `json:"points,omitempty"`
	Volatility float64 `json:"volatility,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// classify maps an error to its HTTP status and machine-readable type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, analytics.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, analytics.ErrNoArbitrageViolation):
		return http.StatusUnprocessableEntity, "no_arbitrage_violation"
	case errors.Is(err, analytics.ErrNoConvergence):
		return http.StatusUnprocessableEntity, "no_convergence"
	case errors.Is(err, marketdata.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, marketdata.ErrUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func abortWithError(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), ErrorType: kind})
}

func contractMeta(ct analytics.Contract) Meta {
	return Meta{Strike: ct.Strike, OptionType: ct.Type.String()}
}
