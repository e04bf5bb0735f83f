package proxyfox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeProof serializes a proof as unpadded URL-safe base64 of its JSON form.
func EncodeProof(p Proof) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeProof is the inverse of EncodeProof. It also accepts the standard
// alphabet and padded input.
func DecodeProof(token string) (*Proof, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewPaymentError(ErrCodeMalformedProof, "empty payment proof", nil)
	}

	data, err := decodeBase64(token)
	if err != nil {
		return nil, NewPaymentError(ErrCodeMalformedProof, "payment proof is not valid base64", map[string]interface{}{
			"error": err.Error(),
		})
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, NewPaymentError(ErrCodeMalformedProof, "payment proof is not a JSON object", nil)
	}

	var p Proof
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, NewPaymentError(ErrCodeMalformedProof, "payment proof could not be parsed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return &p, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}
