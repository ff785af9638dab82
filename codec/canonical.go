package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Canonical encodes v as canonical JSON: UTF-8, object keys sorted
// lexicographically at every nesting level, no insignificant whitespace,
// numbers without leading zeros, booleans/null as JSON literals, strings in
// RFC-8259 escape form. Every signature site in this module signs over the
// output of Canonical, never over json.Marshal directly, so two
// implementations that agree on field values agree bit-for-bit on the
// signed bytes.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal for canonicalization: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: decode for canonicalization: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(canonicalNumber(val))
	case string:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("codec: encode string: %w", err)
		}
		buf.Write(encoded)
	case []interface{}:
		buf.WriteByte('[')
		for i, elt := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elt); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("codec: encode key: %w", err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("codec: unsupported canonical value type %T", v)
	}
	return nil
}

// canonicalNumber renders a json.Number without leading zeros or a
// superfluous exponent/fraction when the value is integral, matching the
// "numbers as JSON numbers without leading zeros" rule. Non-integral
// numbers round-trip through float64 formatting.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return n.String()
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
