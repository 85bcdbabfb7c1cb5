package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
)

type indexStatusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *indexStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func classifyIndexError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{Retry: false, Trip: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Verdict{Retry: true, Trip: true}
	}

	var statusErr *indexStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.statusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, Trip: true}
		default:
			return resilience.Verdict{Retry: false, Trip: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, Trip: true}
	}

	return resilience.Verdict{Retry: false, Trip: true}
}
