package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Class is the transient-failure category of an error
type Class int

// Failure classes. Only Other is non-retriable.
const (
	Other Class = iota
	Throttled
	Unavailable
	Timeout
	NetworkUnreachable
)

func (c Class) String() string {
	switch c {
	case Throttled:
		return "throttled"
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	case NetworkUnreachable:
		return "network_unreachable"
	default:
		return "other"
	}
}

// Retriable reports whether another attempt may succeed
func (c Class) Retriable() bool {
	return c != Other
}

// Classifier maps a vendor error to a Class
type Classifier func(error) Class

// Rule classifies an error message containing any of Patterns as Class
type Rule struct {
	Class    Class
	Patterns []string
}

// MatchMessage applies rules in order to the error message and returns the
// class of the first matching rule, or Other.
func MatchMessage(err error, foldCase bool, rules ...Rule) Class {
	if err == nil {
		return Other
	}
	msg := err.Error()
	if foldCase {
		msg = strings.ToLower(msg)
	}
	for _, r := range rules {
		for _, p := range r.Patterns {
			if foldCase {
				p = strings.ToLower(p)
			}
			if strings.Contains(msg, p) {
				return r.Class
			}
		}
	}
	return Other
}

// ContainsAny reports whether the error message contains any of the patterns
func ContainsAny(err error, patterns ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTimeout reports deadline and i/o timeouts (ETIMEDOUT)
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnRefused reports a refused connection (ECONNREFUSED)
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsConnReset reports a connection reset by the peer (ECONNRESET)
func IsConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

// IsHostNotFound reports a failed DNS lookup (ENOTFOUND)
func IsHostNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
