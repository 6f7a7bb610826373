package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	headerCalendlySignature = "Calendly-Webhook-Signature"
	headerFacebookSignature = "X-Hub-Signature-256"
	headerHubSpotSignature  = "X-HubSpot-Signature-v3"
	headerHubSpotTimestamp  = "X-HubSpot-Request-Timestamp"
	headerZapierSecret      = "X-Zapier-Secret"
	signatureTolerance      = 5 * time.Minute
	facebookSignaturePrefix = "sha256="
	calendlyTimestampField  = "t"
	calendlySignatureField  = "v1"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleSignature   = errors.New("signature timestamp outside tolerance")
)

func hmacSHA256(key string, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

func withinTolerance(ts, now time.Time) bool {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	return diff <= signatureTolerance
}

// VerifyCalendly checks a "t=<unix>,v1=<hex>" header against
// HMAC-SHA256(key, t + "." + body).
func VerifyCalendly(key, header string, body []byte, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch name {
		case calendlyTimestampField:
			ts = value
		case calendlySignatureField:
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrInvalidSignature
	}
	seconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if !withinTolerance(time.Unix(seconds, 0), now) {
		return ErrStaleSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	want := hmacSHA256(key, []byte(ts), []byte("."), body)
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyFacebook checks the "sha256=<hex>" X-Hub-Signature-256 header.
func VerifyFacebook(appSecret, header string, body []byte) error {
	if header == "" {
		return ErrMissingSignature
	}
	hexSig, ok := strings.CutPrefix(header, facebookSignaturePrefix)
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, hmacSHA256(appSecret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyHubSpot checks a v3 request signature: base64 HMAC-SHA256 over
// method + full URI + body + timestamp (milliseconds).
func VerifyHubSpot(clientSecret, header, timestamp, method, uri string, body []byte, now time.Time) error {
	if header == "" || timestamp == "" {
		return ErrMissingSignature
	}
	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if !withinTolerance(time.UnixMilli(millis), now) {
		return ErrStaleSignature
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return ErrInvalidSignature
	}
	want := hmacSHA256(clientSecret, []byte(method), []byte(uri), body, []byte(timestamp))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifySharedSecret compares a static shared secret in constant time.
func VerifySharedSecret(secret, provided string) error {
	if provided == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
