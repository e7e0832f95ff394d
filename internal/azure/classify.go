package azure

import (
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/zgpcy/omnicost/internal/retry"
)

// credentialCodes are ARM error codes for a rejected principal or an unknown subscription
var credentialCodes = []string{
	"AuthenticationError",
	"InvalidAuthenticationToken",
	"UnauthorizedRequestError",
	"SubscriptionNotFound",
}

// Classify maps an Azure SDK error to a retry class.
// Message patterns are matched case-insensitively.
func Classify(err error) retry.Class {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusTooManyRequests:
			return retry.Throttled
		case http.StatusServiceUnavailable:
			return retry.Unavailable
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return retry.Timeout
		}
	}

	switch {
	case retry.IsTimeout(err):
		return retry.Timeout
	case retry.IsConnRefused(err), retry.IsHostNotFound(err):
		return retry.NetworkUnreachable
	}

	return retry.MatchMessage(err, true,
		retry.Rule{Class: retry.Throttled, Patterns: []string{"TooManyRequests", "429"}},
		retry.Rule{Class: retry.Unavailable, Patterns: []string{"ServiceUnavailable", "503"}},
		retry.Rule{Class: retry.Timeout, Patterns: []string{"RequestTimeout", "GatewayTimeout", "ETIMEDOUT", "504"}},
		retry.Rule{Class: retry.NetworkUnreachable, Patterns: []string{"NetworkError", "ECONNREFUSED", "ENOTFOUND"}},
	)
}

// IsCredentialError reports whether err means the service principal was
// rejected or the subscription does not exist
func IsCredentialError(err error) bool {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return true
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusUnauthorized {
			return true
		}
		for _, code := range credentialCodes {
			if respErr.ErrorCode == code {
				return true
			}
		}
	}

	return retry.ContainsAny(err, credentialCodes...)
}
