package gcp

import (
	"errors"
	"net/http"

	"github.com/zgpcy/omnicost/internal/retry"
	"google.golang.org/api/googleapi"
)

// retriableReasons maps BigQuery error reasons to failure classes
var retriableReasons = map[string]retry.Class{
	"rateLimitExceeded": retry.Throttled,
	"backendError":      retry.Unavailable,
	"internalError":     retry.Unavailable,
}

// credentialSignals identify missing credentials or an unreachable export table
var credentialSignals = []string{
	"Not found",
	"Permission denied",
	"Could not load the default credentials",
	"could not find default credentials",
}

// Classify maps a BigQuery error to a retry class.
// Message patterns are matched case-insensitively.
func Classify(err error) retry.Class {
	if errors.Is(err, ErrNoCredentials) {
		return retry.Other
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			if class, ok := retriableReasons[item.Reason]; ok {
				return class
			}
		}
		switch apiErr.Code {
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			return retry.Unavailable
		}
	}

	switch {
	case retry.IsTimeout(err):
		return retry.Timeout
	case retry.IsConnRefused(err), retry.IsHostNotFound(err):
		return retry.NetworkUnreachable
	}

	return retry.MatchMessage(err, true,
		retry.Rule{Class: retry.Throttled, Patterns: []string{"rateLimitExceeded"}},
		retry.Rule{Class: retry.Unavailable, Patterns: []string{"backendError", "internalError", "503", "500"}},
		retry.Rule{Class: retry.Timeout, Patterns: []string{"timeout", "ETIMEDOUT"}},
		retry.Rule{Class: retry.NetworkUnreachable, Patterns: []string{"ECONNREFUSED", "ENOTFOUND", "connection refused", "no such host"}},
	)
}

// IsCredentialError reports whether err means the caller cannot read the export
func IsCredentialError(err error) bool {
	if errors.Is(err, ErrNoCredentials) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return retry.ContainsAny(err, credentialSignals...)
}
