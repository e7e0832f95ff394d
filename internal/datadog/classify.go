package datadog

import (
	"errors"
	"net/http"

	"github.com/zgpcy/omnicost/internal/retry"
)

// Classify maps a Datadog API error to a retry class
func Classify(err error) retry.Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return retry.Throttled
		case http.StatusServiceUnavailable:
			return retry.Unavailable
		}
	}

	if retry.IsConnReset(err) {
		return retry.NetworkUnreachable
	}

	return retry.MatchMessage(err, false,
		retry.Rule{Class: retry.Throttled, Patterns: []string{"429"}},
		retry.Rule{Class: retry.Unavailable, Patterns: []string{"503"}},
		retry.Rule{Class: retry.NetworkUnreachable, Patterns: []string{"ECONNRESET", "connection reset"}},
	)
}

// IsCredentialError reports a 401 or 403 answer
func IsCredentialError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
	}
	return retry.ContainsAny(err, "401", "403")
}
