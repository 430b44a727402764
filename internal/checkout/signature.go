package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrSignatureHeader     = fmt.Errorf("%w: malformed x-signature header", ErrInvalidSignature)
	ErrSecretNotConfigured = errors.New("webhook secret is not configured")
)

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// SignatureVerifier checks Mercado Pago x-signature headers.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

// Verify fails closed: any missing part or digest mismatch is an error.
func (v *SignatureVerifier) Verify(signatureHeader, requestID, dataID string) error {
	ts, v1, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}
	if requestID == "" {
		return fmt.Errorf("%w: missing x-request-id", ErrInvalidSignature)
	}
	if dataID == "" {
		return fmt.Errorf("%w: missing data.id", ErrInvalidSignature)
	}
	if v == nil || v.secret == "" {
		return ErrSecretNotConfigured
	}

	expected := ComputeSignature(v.secret, BuildManifest(dataID, requestID, ts))
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}

// BuildManifest returns the string the provider signs.
func BuildManifest(dataID, requestID, ts string) string {
	id := dataID
	if alphanumeric.MatchString(id) {
		id = strings.ToLower(id)
	}
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", id, requestID, ts)
}

func ComputeSignature(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader reads "ts=<ts>,v1=<digest>".
func parseSignatureHeader(header string) (ts, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "ts":
			ts = strings.TrimSpace(kv[1])
		case "v1":
			v1 = strings.TrimSpace(kv[1])
		}
	}
	if ts == "" || v1 == "" {
		return "", "", ErrSignatureHeader
	}
	return ts, v1, nil
}
