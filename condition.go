package ipr

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
)

// Condition is a crypto-condition URI committing to a 32-byte preimage:
// "cc:0:3:<base64url(sha256(preimage))>:32". Algorithm id 0 is
// PREIMAGE-SHA-256, 3 is its feature bitmask, 32 the preimage length.
type Condition string

// Fulfillment is the preimage URI that satisfies a Condition:
// "cf:0:<base64url(preimage)>".
type Fulfillment string

const (
	conditionPrefix   = "cc:0:3:"
	conditionSuffix   = ":32"
	fulfillmentPrefix = "cf:0:"
)

var b64url = base64.RawURLEncoding

// Validate checks the structural form of the condition URI.
func (c Condition) Validate() error {
	s := string(c)
	if !strings.HasPrefix(s, conditionPrefix) || !strings.HasSuffix(s, conditionSuffix) {
		return NewValidationError("malformed condition %q", s)
	}
	fp := strings.TrimSuffix(strings.TrimPrefix(s, conditionPrefix), conditionSuffix)
	raw, err := b64url.DecodeString(fp)
	if err != nil {
		return NewValidationError("malformed condition fingerprint %q: %v", fp, err)
	}
	if len(raw) != sha256.Size {
		return NewValidationError("condition fingerprint must be %d bytes, got %d", sha256.Size, len(raw))
	}
	return nil
}

// Preimage decodes the fulfillment's raw preimage bytes.
func (f Fulfillment) Preimage() ([]byte, error) {
	s := string(f)
	if !strings.HasPrefix(s, fulfillmentPrefix) {
		return nil, NewValidationError("malformed fulfillment %q", s)
	}
	raw, err := b64url.DecodeString(strings.TrimPrefix(s, fulfillmentPrefix))
	if err != nil {
		return nil, NewValidationError("malformed fulfillment preimage: %v", err)
	}
	return raw, nil
}

// Condition computes the condition this fulfillment satisfies.
func (f Fulfillment) Condition() (Condition, error) {
	preimage, err := f.Preimage()
	if err != nil {
		return "", err
	}
	return conditionFromPreimage(preimage), nil
}

// Matches reports whether revealing f authorizes a transfer locked to c.
func (f Fulfillment) Matches(c Condition) bool {
	derived, err := f.Condition()
	if err != nil {
		return false
	}
	return derived == c
}

func conditionFromPreimage(preimage []byte) Condition {
	fingerprint := sha256.Sum256(preimage)
	return Condition(conditionPrefix + b64url.EncodeToString(fingerprint[:]) + conditionSuffix)
}

func fulfillmentFromPreimage(preimage []byte) Fulfillment {
	return Fulfillment(fulfillmentPrefix + b64url.EncodeToString(preimage))
}

// DeriveCondition deterministically derives the execution condition and its
// fulfillment for a packet. The HMAC-SHA-256 tag over the packet's canonical
// bytes under seed is the fulfillment preimage; the condition commits to it.
//
// The derivation is a pure function: identical inputs always yield identical
// output, which is what lets the receiver re-validate and the sender retry
// without either storing per-request state.
func DeriveCondition(seed []byte, pkt WirePacket) (Condition, Fulfillment, error) {
	if len(seed) == 0 {
		return "", "", NewValidationError("condition derivation requires a non-empty seed")
	}
	canonical, err := CanonicalPacketBytes(pkt)
	if err != nil {
		return "", "", err
	}
	mac := hmac.New(sha256.New, seed)
	mac.Write(canonical)
	preimage := mac.Sum(nil)
	return conditionFromPreimage(preimage), fulfillmentFromPreimage(preimage), nil
}

// CanonicalPacketBytes serializes the payment-relevant packet fields into the
// byte string conditions are derived over: compact JSON with lexicographically
// sorted keys. The execution condition itself is excluded, since it is the
// output of the derivation, and empty optional fields are omitted so that a
// parsed packet and a locally built one canonicalize identically.
func CanonicalPacketBytes(pkt WirePacket) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeCanonicalString(&buf, "account", pkt.Account)
	buf.WriteByte(',')
	writeCanonicalString(&buf, "amount", pkt.Amount)
	buf.WriteString(`,"data":{`)
	first := true
	if pkt.Data.ExpiresAt != "" {
		writeCanonicalString(&buf, "expiresAt", pkt.Data.ExpiresAt)
		first = false
	}
	if !first {
		buf.WriteByte(',')
	}
	writeCanonicalString(&buf, "id", pkt.Data.ID)
	if len(pkt.Data.UserData) > 0 {
		buf.WriteString(`,"userData":`)
		if err := writeCanonicalRaw(&buf, pkt.Data.UserData); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},`)
	writeCanonicalString(&buf, "ledger", pkt.Ledger)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeCanonicalString(buf *bytes.Buffer, key, value string) {
	buf.Write(encodeJSONString(key))
	buf.WriteByte(':')
	buf.Write(encodeJSONString(value))
}

// writeCanonicalRaw re-encodes arbitrary JSON with sorted object keys so that
// user data canonicalizes the same regardless of how the packet was produced.
func writeCanonicalRaw(buf *bytes.Buffer, raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return NewValidationError("userData is not valid JSON: %v", err)
	}
	return writeCanonicalValue(buf, v)
}

func writeCanonicalValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		buf.Write(encodeJSONString(t))
	case []interface{}:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalValue(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(encodeJSONString(k))
			buf.WriteByte(':')
			if err := writeCanonicalValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return NewValidationError("unsupported userData value of type %T", v)
	}
	return nil
}

// encodeJSONString encodes s as a JSON string without HTML escaping, so the
// canonical bytes match across implementations.
func encodeJSONString(s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Encode on a string cannot fail.
	_ = enc.Encode(s)
	return bytes.TrimRight(b.Bytes(), "\n")
}
