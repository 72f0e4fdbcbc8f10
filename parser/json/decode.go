package jsonparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/siocore/sio/parser"
)

var (
	errInvalidPacketSize = fmt.Errorf("jsonparser: invalid packet size")
	errMalformedPacket   = fmt.Errorf("jsonparser: malformed packet")
)

// Add consumes one inbound frame. The first frame of a packet carries
// the header and JSON payload; binary packets are followed by their
// attachment frames. finish is invoked once the packet is whole.
func (p *Parser) Add(data []byte, finish parser.Finish) error {
	if p.r == nil {
		r, err := p.parseTextFrame(data)
		if err != nil {
			return err
		}

		if p.maxAttachments > 0 && r.header.Attachments > p.maxAttachments {
			return errMaxAttachmentsExceeded
		}

		if r.header.IsBinary() && r.header.Attachments > 0 {
			p.r = r
			return nil
		}
		finish(r.header, r.eventName, r.decode)
		return nil
	}

	r := p.r
	r.buffers = append(r.buffers, data)
	if len(r.buffers) == r.header.Attachments {
		p.r = nil
		finish(r.header, r.eventName, r.decode)
	}
	return nil
}

func (p *Parser) parseTextFrame(data []byte) (*reconstructor, error) {
	if len(data) < 1 {
		return nil, errInvalidPacketSize
	}

	header := new(parser.PacketHeader)
	if err := header.Type.FromChar(data[0]); err != nil {
		return nil, err
	}
	data = data[1:]

	if header.IsBinary() {
		i := bytes.IndexByte(data, '-')
		if i == -1 {
			return nil, errMalformedPacket
		}
		attachments, err := strconv.Atoi(string(data[:i]))
		if err != nil || attachments < 0 {
			return nil, errMalformedPacket
		}
		header.Attachments = attachments
		data = data[i+1:]
	}

	if len(data) > 0 && data[0] == '/' {
		i := bytes.IndexByte(data, ',')
		if i == -1 {
			header.Namespace = string(data)
			data = nil
		} else {
			header.Namespace = string(data[:i])
			data = data[i+1:]
		}
	} else {
		header.Namespace = "/"
	}

	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.ParseUint(string(data[:i]), 10, 64)
		if err != nil {
			return nil, err
		}
		header.ID = &id
		data = data[i:]
	}

	r := &reconstructor{
		header:  header,
		json:    p.json,
		payload: data,
	}

	if header.IsEvent() || header.IsAck() {
		if len(data) == 0 {
			data = []byte("[]")
		}
		if err := p.json.Unmarshal(data, &r.rawArgs); err != nil {
			return nil, err
		}
		if header.IsEvent() {
			if len(r.rawArgs) == 0 {
				return nil, errMalformedPacket
			}
			if err := p.json.Unmarshal(r.rawArgs[0], &r.eventName); err != nil {
				return nil, errMalformedPacket
			}
			r.rawArgs = r.rawArgs[1:]
		}
	}

	return r, nil
}

type reconstructor struct {
	header    *parser.PacketHeader
	eventName string
	json      interface {
		Marshal(v any) ([]byte, error)
		Unmarshal(data []byte, v any) error
	}

	payload []byte
	rawArgs []json.RawMessage
	buffers [][]byte
}

// decode materializes the payload into freshly allocated values of the
// requested types. Every returned value is a pointer (reflect.New); the
// caller dereferences as needed. A nil type decodes into *any. Calling
// with no types on an event or ack packet decodes every argument as any.
func (r *reconstructor) decode(types ...reflect.Type) (values []reflect.Value, err error) {
	if len(types) == 0 && (r.header.IsEvent() || r.header.IsAck()) {
		types = make([]reflect.Type, len(r.rawArgs))
	}
	values = convertTypesToValues(types...)

	if r.header.IsEvent() || r.header.IsAck() {
		for i, rv := range values {
			if i >= len(r.rawArgs) {
				break
			}
			if err = r.json.Unmarshal(r.rawArgs[i], rv.Interface()); err != nil {
				return nil, err
			}
		}
	} else if len(values) > 0 {
		payload := r.payload
		if len(payload) == 0 {
			return values, nil
		}
		if err = r.json.Unmarshal(payload, values[0].Interface()); err != nil {
			return nil, err
		}
	}

	if len(r.buffers) > 0 {
		for _, rv := range values {
			if err = r.reconstructValue(rv.Elem()); err != nil {
				return nil, err
			}
		}
	}
	return values, nil
}

// reconstructValue swaps placeholders for the attachment buffers they
// reference. rv must be settable.
func (r *reconstructor) reconstructValue(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		rv.Set(reflect.ValueOf(r.reconstructAny(rv.Interface())))
	case reflect.Ptr:
		if !rv.IsNil() {
			return r.reconstructValue(rv.Elem())
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return r.swapCapturedPlaceholder(rv)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := r.reconstructValue(rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if m, ok := rv.Interface().(map[string]any); ok {
			r.reconstructAny(m)
			return nil
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			fv := rv.Field(i)
			if fv.CanSet() {
				if err := r.reconstructValue(fv); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// swapCapturedPlaceholder handles byte-slice values whose UnmarshalJSON
// captured a placeholder object verbatim.
func (r *reconstructor) swapCapturedPlaceholder(rv reflect.Value) error {
	if !rv.CanInterface() {
		return nil
	}
	sb, ok := rv.Interface().(socketIOBinary)
	if !ok || !sb.SocketIOBinary() {
		return nil
	}

	var ph placeholder
	if err := json.Unmarshal(rv.Bytes(), &ph); err != nil || !ph.Placeholder {
		// Base64 content was already decoded in place.
		return nil
	}
	if ph.Num < 0 || ph.Num >= len(r.buffers) {
		return errMalformedPacket
	}
	rv.SetBytes(r.buffers[ph.Num])
	return nil
}

// reconstructAny rewrites placeholder objects inside decoded any-trees.
// Slices and maps are mutated in place.
func (r *reconstructor) reconstructAny(v any) any {
	if buf, ok := r.placeholderBuffer(v); ok {
		return buf
	}
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = r.reconstructAny(t[i])
		}
	case map[string]any:
		for k, el := range t {
			t[k] = r.reconstructAny(el)
		}
	}
	return v
}

func (r *reconstructor) placeholderBuffer(v any) (Binary, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 2 {
		return nil, false
	}
	ph, _ := m["_placeholder"].(bool)
	num, okNum := m["num"].(float64)
	if !ph || !okNum || int(num) < 0 || int(num) >= len(r.buffers) {
		return nil, false
	}
	return Binary(r.buffers[int(num)]), true
}

func convertTypesToValues(types ...reflect.Type) (values []reflect.Value) {
	values = make([]reflect.Value, len(types))
	for i, typ := range types {
		if typ == nil {
			var unused any
			typ = reflect.TypeOf(&unused)
		}
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		values[i] = reflect.New(typ)
	}
	return
}
