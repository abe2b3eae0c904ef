package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrSignatureMissing   = errors.New("signature header missing")
	ErrSignatureMalformed = errors.New("signature header malformed")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// Signature is the parsed x-signature header, "ts=<timestamp>,v1=<hex hmac>".
type Signature struct {
	TS string
	V1 string
}

func ParseSignature(header string) (Signature, error) {
	var sig Signature

	header = strings.TrimSpace(header)
	if header == "" {
		return sig, ErrSignatureMissing
	}

	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			sig.TS = strings.TrimSpace(v)
		case "v1":
			sig.V1 = strings.TrimSpace(v)
		}
	}

	if sig.TS == "" || sig.V1 == "" {
		return sig, ErrSignatureMalformed
	}

	return sig, nil
}

// Manifest builds the string the gateway signs. Absent values are left out.
func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

func Sign(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Manifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks webhook signatures against the shared secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(header, requestID, dataID string) error {
	sig, err := ParseSignature(header)
	if err != nil {
		return err
	}

	got, err := hex.DecodeString(sig.V1)
	if err != nil {
		return ErrSignatureMalformed
	}

	want, _ := hex.DecodeString(Sign(v.secret, dataID, requestID, sig.TS))
	if !hmac.Equal(got, want) {
		return ErrSignatureMismatch
	}

	return nil
}
