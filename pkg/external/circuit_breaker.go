package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// StatusError is returned for unexpected HTTP status codes
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// newBreaker builds a circuit breaker for one upstream service. Missing pages are
// a normal answer and do not count as failures.
func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrPageNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// isRetryable decides whether a failed call should be attempted again
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, domain.ErrPageNotFound) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	// transport errors
	return true
}
