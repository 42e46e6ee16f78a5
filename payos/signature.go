package payos

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func sign(checksumKey, data string) string {
	h := hmac.New(sha256.New, []byte(checksumKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// createRequestSignature signs the five fields PayOS checks on create, in
// alphabetical order.
func createRequestSignature(checksumKey string, req CreatePaymentRequest) string {
	data := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)
	return sign(checksumKey, data)
}

// dataSignature signs a JSON object the way PayOS signs webhook and
// response data: keys sorted, key=value joined with &, null rendered empty.
func dataSignature(checksumKey string, raw json.RawMessage) (string, error) {
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", err
	}
	return sign(checksumKey, canonical), nil
}

func verifyDataSignature(checksumKey string, raw json.RawMessage, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	expected, err := dataSignature(checksumKey, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

func canonicalize(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", fmt.Errorf("decode signed data: %w", err)
	}
	if fields == nil {
		return "", fmt.Errorf("signed data is empty")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := formatValue(fields[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&"), nil
}

func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		if val == "null" || val == "undefined" {
			return "", nil
		}
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		// arrays and nested objects are signed as JSON with sorted keys
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encode signed value: %w", err)
		}
		return string(b), nil
	}
}
