package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// CheckStatus issues a HEAD request for target, following redirects, and
// reports the final status code or a classified failure.
func (c *Crawler) CheckStatus(ctx context.Context, target string) LinkStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", target).Msg("Cannot build status request")
		return ConnectionErrorStatus("InvalidURL")
	}
	setBrowserHeaders(req.Header, c.config.UserAgent)

	resp, err := c.checker.Do(req)
	if err != nil {
		status := classifyCheckError(err)
		if status.Failure == FailureUnexpected {
			sentry.CaptureException(err)
			log.Error().Err(err).Str("url", target).Msg("Unexpected error checking link")
		} else {
			log.Debug().Err(err).Str("url", target).Str("status", status.String()).Msg("Link check failed")
		}
		return status
	}
	defer resp.Body.Close()

	log.Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Msg("Link checked")

	return StatusCode(resp.StatusCode)
}

// classifyCheckError maps a client error onto the failure kinds reported on
// the wire.
func classifyCheckError(err error) LinkStatus {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return TimeoutStatus()
	}
	if errors.Is(err, context.Canceled) {
		return ConnectionErrorStatus("Cancelled")
	}
	if errors.Is(err, ErrBlockedAddress) {
		return ConnectionErrorStatus("BlockedAddress")
	}
	if errors.Is(err, errTooManyRedirects) {
		return ConnectionErrorStatus("TooManyRedirects")
	}
	if isTLSError(err) {
		return ConnectionErrorStatus("SSLError")
	}

	var urlErr *url.Error
	inner := err
	if errors.As(err, &urlErr) {
		inner = urlErr.Err
		if strings.Contains(inner.Error(), "unsupported protocol scheme") {
			return ConnectionErrorStatus("InvalidSchema")
		}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ConnectionErrorStatus("ConnectionError")
	}

	return UnexpectedErrorStatus(fmt.Sprintf("%T", inner))
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
		recordHeaderErr  tls.RecordHeaderError
		alertErr         tls.AlertError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordHeaderErr) ||
		errors.As(err, &alertErr)
}
