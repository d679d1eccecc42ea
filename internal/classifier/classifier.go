// Package classifier implements the one-shot, unproxied check-website
// probe (C4): it auto-detects whether check_website echoes a plain IPv4
// body or an httpbin-style JSON object, and derives the caller's real IP.
package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/proxyharvest/proxyharvest/internal/logging"
	"github.com/proxyharvest/proxyharvest/internal/parser"
)

// Type is the three-state response shape the classifier recognizes.
type Type int

const (
	Unknown Type = iota
	PlainIP
	HTTPBinIP
)

func (t Type) String() string {
	switch t {
	case PlainIP:
		return "PLAIN_IP"
	case HTTPBinIP:
		return "HTTPBIN_IP"
	default:
		return "UNKNOWN"
	}
}

// SupportsGeolocation and SupportsAnonymity are both false exactly when
// Type is Unknown; kept as named checks so call sites read like the spec.
func (t Type) SupportsGeolocation() bool { return t != Unknown }
func (t Type) SupportsAnonymity() bool   { return t != Unknown }

type httpbinBody struct {
	Origin string `json:"origin"`
}

// Classify fetches checkWebsite with no proxy and returns its response
// shape plus the real client IP. Any network or decode failure yields
// (Unknown, "") and is logged as a warning rather than returned as an
// error, matching the classifier's non-fatal BaselineUnavailable category.
func Classify(ctx context.Context, client *http.Client, logger *logging.Logger, checkWebsite string) (Type, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkWebsite, nil)
	if err != nil {
		logger.BaselineUnavailable(checkWebsite, err)
		return Unknown, ""
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.BaselineUnavailable(checkWebsite, err)
		return Unknown, ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.BaselineUnavailable(checkWebsite, err)
		return Unknown, ""
	}

	var decoded httpbinBody
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr == nil && decoded.Origin != "" {
		if ip, err := parser.ParseIPv4(decoded.Origin); err == nil {
			logger.BaselineClassified(checkWebsite, HTTPBinIP.String(), ip)
			return HTTPBinIP, ip
		}
	}

	if ip, err := parser.ParseIPv4(string(body)); err == nil {
		logger.BaselineClassified(checkWebsite, PlainIP.String(), ip)
		return PlainIP, ip
	}

	logger.BaselineUnavailable(checkWebsite, errUnrecognizedShape)
	return Unknown, ""
}

var errUnrecognizedShape = unrecognizedShapeError{}

type unrecognizedShapeError struct{}

func (unrecognizedShapeError) Error() string {
	return "check_website is neither httpbin-shaped JSON nor a plain IPv4 body"
}

// NewHTTPClient builds the dedicated, short-lived client used only for the
// single baseline probe, with its own deadline independent of Settings.timeout.
func NewHTTPClient(deadline time.Duration) *http.Client {
	return &http.Client{Timeout: deadline}
}
