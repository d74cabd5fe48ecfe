package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"

	"rfqgateway/pkg/circuitbreaker"
)

// statusCoder is implemented by upstream HTTP errors.
type statusCoder interface {
	StatusCode() int
}

// ClassifyError maps an error to a short, low-cardinality reason used in logs and
// metric labels.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "not_found"
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "json_decode_error"
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code >= 500:
			return "upstream_5xx"
		case code == 401 || code == 403:
			return "upstream_auth"
		case code >= 400:
			return "upstream_4xx"
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "network_error"
	}

	return "unknown_error"
}
