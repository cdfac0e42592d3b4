package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Classify maps a transport failure onto the error taxonomy. Already
// classified errors pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if scraper.KindOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return scraper.Shutdown(op)
	case errors.Is(err, context.DeadlineExceeded):
		return scraper.Timeout(op, err)
	case isTLSError(err):
		return scraper.SSL(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return scraper.Timeout(op, err)
	}
	return scraper.Transport(op, err)
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		record           tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) || errors.As(err, &invalid) ||
		errors.As(err, &verification) || errors.As(err, &record) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:") ||
		strings.Contains(msg, "net::ERR_CERT") || strings.Contains(msg, "net::ERR_SSL")
}
