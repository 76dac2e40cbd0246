package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"time"
)

// Reason codes recorded on every fetch attempt. The set is closed; persist
// these values verbatim.
const (
	ReasonOK                = "ok"
	ReasonRobotsDisallowed  = "robots_disallowed"
	ReasonInvalidMIME       = "invalid_mime"
	ReasonNon200Status      = "non_200_status"
	ReasonSizeLimitExceeded = "size_limit_exceeded"
	ReasonNetworkTimeout    = "network_timeout"
	ReasonDNSFailure        = "dns_failure"
	ReasonTLSError          = "tls_error"
	ReasonNetworkError      = "network_error"
	ReasonTimeBudget        = "time_budget_exceeded"
	ReasonThinContent       = "thin_content"
)

// classifyNetError maps a transport error to a reason code. When the site
// deadline has already passed, the whole-crawl budget is what cut the request
// short, so that wins over the per-phase timeout classification.
func classifyNetError(err error, deadline time.Time) string {
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return ReasonTimeBudget
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNSFailure
	}

	if isTLSError(err) {
		return ReasonTLSError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonNetworkTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonNetworkTimeout
	}

	return ReasonNetworkError
}

// isTLSError reports whether err originated in the TLS handshake or
// certificate verification.
func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}
	// net/http wraps handshake failures without a typed error.
	return strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "x509:")
}
