package webhook

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
)

// SignatureHeader carries the base64 RSA-SHA256 signature Akahu computes
// over the raw request body.
const SignatureHeader = "X-Akahu-Signature"

// SignatureVerifier validates Akahu webhook signatures.
type SignatureVerifier struct {
	publicKey *rsa.PublicKey
}

// NewSignatureVerifier parses a PEM-encoded RSA public key.
func NewSignatureVerifier(publicKeyPEM string) (*SignatureVerifier, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode webhook public key PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook public key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("webhook public key is not an RSA key")
	}

	return &SignatureVerifier{publicKey: rsaKey}, nil
}

// Middleware rejects requests whose body does not verify against the
// signature header. The body is re-wrapped for downstream handlers.
// Verification happens before any mapping or destination state is touched.
func (v *SignatureVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sigHeader := r.Header.Get(SignatureHeader)
		if sigHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing signature header")
			return
		}

		signature, err := base64.StdEncoding.DecodeString(sigHeader)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Malformed signature header")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		digest := sha256.Sum256(body)
		if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], signature); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}
