package aws

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/zgpcy/omnicost/internal/retry"
)

// retriableCodes maps AWS error codes to failure classes
var retriableCodes = map[string]retry.Class{
	"ThrottlingException":      retry.Throttled,
	"TooManyRequestsException": retry.Throttled,
	"ServiceUnavailable":       retry.Unavailable,
	"RequestTimeout":           retry.Timeout,
	"RequestTimeoutException":  retry.Timeout,
	"NetworkingError":          retry.NetworkUnreachable,
}

// credentialSignals identify a rejected or missing credential
var credentialSignals = []string{
	"UnrecognizedClientException",
	"InvalidClientTokenId",
	"CredentialsError",
	"Could not load credentials",
	"failed to retrieve credentials",
}

// Classify maps an AWS SDK error to a retry class. Credential failures are
// never retried, even when they wrap a network error from the IMDS lookup.
func Classify(err error) retry.Class {
	if IsCredentialError(err) {
		return retry.Other
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if class, ok := retriableCodes[apiErr.ErrorCode()]; ok {
			return class
		}
	}

	switch {
	case retry.IsTimeout(err):
		return retry.Timeout
	case retry.IsConnRefused(err):
		return retry.NetworkUnreachable
	}

	return retry.MatchMessage(err, false,
		retry.Rule{Class: retry.Throttled, Patterns: []string{"ThrottlingException", "TooManyRequestsException"}},
		retry.Rule{Class: retry.Unavailable, Patterns: []string{"ServiceUnavailable"}},
		retry.Rule{Class: retry.Timeout, Patterns: []string{"RequestTimeout", "timeout"}},
		retry.Rule{Class: retry.NetworkUnreachable, Patterns: []string{"NetworkingError", "ECONNREFUSED", "connection refused"}},
	)
}

// IsCredentialError reports whether err is a recognized authentication failure
func IsCredentialError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidClientTokenId":
			return true
		}
	}
	return retry.ContainsAny(err, credentialSignals...)
}
