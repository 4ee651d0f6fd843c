package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrNoResponse is reported when a fetch returned neither an error nor a
	// response.
	ErrNoResponse = errors.New("no response received")
	// ErrProbePanic wraps a panic raised while probing a URL.
	ErrProbePanic = errors.New("probe panicked")
)

// ErrTimeout indicates the request exceeded the configured timeout.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrDNS indicates the host name could not be resolved.
type ErrDNS struct {
	Err error
}

func (e ErrDNS) Error() string {
	return fmt.Errorf("dns: %w", e.Err).Error()
}

func (e ErrDNS) Unwrap() error {
	return e.Err
}

// ErrTLS indicates the TLS handshake or certificate verification failed.
type ErrTLS struct {
	Err error
}

func (e ErrTLS) Error() string {
	return fmt.Errorf("tls: %w", e.Err).Error()
}

func (e ErrTLS) Unwrap() error {
	return e.Err
}

// ErrInvalidURL indicates the target could not be parsed as a URL.
type ErrInvalidURL struct {
	Err error
}

func (e ErrInvalidURL) Error() string {
	return fmt.Errorf("invalid_url: %w", e.Err).Error()
}

func (e ErrInvalidURL) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var dns ErrDNS
	if errors.As(err, &dns) {
		return "dns"
	}
	var tlsErr ErrTLS
	if errors.As(err, &tlsErr) {
		return "tls"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var invalid ErrInvalidURL
	if errors.As(err, &invalid) {
		return "invalid_url"
	}
	return "other"
}

// classifyError wraps err in the type matching its cause. Timeouts are only
// reported as such when the caller configured one; otherwise they are plain
// connection failures.
func classifyError(err error, timeoutSet bool) error {
	if err == nil {
		return nil
	}

	if isTimeout(err) {
		if timeoutSet {
			return ErrTimeout{Err: err}
		}
		return ErrConnection{Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrDNS{Err: err}
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrTLS{Err: err}
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return ErrTLS{Err: err}
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return ErrTLS{Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && (urlErr.Op == "parse" || urlErr.Op == "") {
		return ErrInvalidURL{Err: err}
	}

	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
