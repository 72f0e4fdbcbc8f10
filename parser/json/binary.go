package jsonparser

import (
	"encoding/json"
	"errors"
	"reflect"
)

// socketIOBinary marks byte-slice types that must travel as binary
// attachments instead of base64 text.
type socketIOBinary interface {
	SocketIOBinary() bool
}

type Binary []byte

func (b Binary) SocketIOBinary() bool { return true }

func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal([]byte(b))
}

// UnmarshalJSON accepts either a base64 string (binary framing was
// suppressed by the sender) or a placeholder object, which is kept
// verbatim until the reconstructor swaps in the attachment.
func (b *Binary) UnmarshalJSON(data []byte) error {
	if b == nil {
		return errors.New("jsonparser: Binary: UnmarshalJSON on nil pointer")
	}
	if len(data) > 0 && (data[0] == '"' || string(data) == "null") {
		var raw []byte
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = raw
		return nil
	}
	*b = append((*b)[:0], data...)
	return nil
}

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

// deconstruct returns a JSON-safe copy of v with every binary value
// replaced by a placeholder, appending the extracted buffers in
// placeholder order. Binary values nested inside user structs are left
// alone; they marshal as base64 text instead.
func (p *Parser) deconstruct(v any, buffers *[][]byte) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Binary:
		ph := placeholder{Placeholder: true, Num: len(*buffers)}
		*buffers = append(*buffers, t)
		return ph
	case *Binary:
		if t == nil {
			return nil
		}
		return p.deconstruct(*t, buffers)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = p.deconstruct(el, buffers)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = p.deconstruct(el, buffers)
		}
		return out
	}

	if sb, ok := v.(socketIOBinary); ok && sb.SocketIOBinary() {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			ph := placeholder{Placeholder: true, Num: len(*buffers)}
			*buffers = append(*buffers, rv.Bytes())
			return ph
		}
	}
	return v
}

// hasBinary reports whether v contains a value that must be framed as
// a binary attachment.
func hasBinary(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.CanInterface() {
				sb, ok := rv.Interface().(socketIOBinary)
				return ok && sb.SocketIOBinary()
			}
			return false
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasBinary(rv.Index(i)) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			fv := rv.Field(i)
			if fv.IsValid() && fv.CanInterface() && hasBinary(fv) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value()) {
				return true
			}
		}
	}
	return false
}
