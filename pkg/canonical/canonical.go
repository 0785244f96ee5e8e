// Package canonical produces the deterministic byte form that every signature
// in the protocol is computed over, and signs and verifies it with Ed25519.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

type absent struct{}

// Absent marks a map entry that must be left out of the canonical form.
// An explicit nil is kept and rendered as null.
var Absent = absent{}

// Canonicalize renders value as compact JSON with object keys sorted at every
// level. Arrays keep their order. Values that are not plain maps, slices or
// scalars are first normalised through their JSON encoding.
func Canonicalize(value any) (string, error) {
	b, err := Bytes(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes is Canonicalize returning the raw bytes.
func Bytes(value any) ([]byte, error) {
	norm, err := normalize(value)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := write(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToObject normalises value into a generic JSON object.
func ToObject(value any) (map[string]any, error) {
	norm, err := normalize(value)
	if err != nil {
		return nil, err
	}
	obj, ok := norm.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("canonical: expected an object, got %T", norm)
	}
	return obj, nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case absent:
		return t, nil
	case string, bool, json.Number:
		return t, nil
	case float64:
		return t, nil
	case int:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(t, 10)), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: encode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode %T: %w", v, err)
	}
	return normalize(generic)
}

func write(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil, absent:
		// Absent inside an array has no key to drop, so it becomes null.
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		buf.WriteString(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("canonical: unsupported number %v", t)
		}
		buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return writeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k, val := range t {
			if _, skip := val.(absent); skip {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := write(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
