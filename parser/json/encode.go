package jsonparser

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"

	"github.com/siocore/sio/parser"
)

var (
	errNilArgument            = fmt.Errorf("jsonparser: nil argument provided")
	errNonPtrArgument         = fmt.Errorf("jsonparser: the argument must be a pointer")
	errMaxAttachmentsExceeded = fmt.Errorf("jsonparser: maximum number of attachments exceeded")
)

// Encode produces the frames for one packet: the text frame first,
// then one frame per binary attachment. v is a pointer to the payload,
// or nil for a payload-free packet (CONNECT, DISCONNECT).
func (p *Parser) Encode(header *parser.PacketHeader, v any) ([][]byte, error) {
	if v == nil {
		frame, err := p.encodeString(header, nil, true)
		if err != nil {
			return nil, err
		}
		return [][]byte{frame}, nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errNilArgument
	}
	if rv.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("jsonparser: invalid argument (%s): %w", rv.Type().String(), errNonPtrArgument)
	}
	if rv.IsNil() {
		return nil, errNilArgument
	}

	if !header.Plain && !header.IsBinary() {
		switch header.Type {
		case parser.PacketTypeEvent:
			if hasBinary(rv) {
				header.Type = parser.PacketTypeBinaryEvent
			}
		case parser.PacketTypeAck:
			if hasBinary(rv) {
				header.Type = parser.PacketTypeBinaryAck
			}
		}
	}

	payload := rv.Elem().Interface()

	if header.IsBinary() && !header.Plain {
		var buffers [][]byte
		payload = p.deconstruct(payload, &buffers)
		if p.maxAttachments > 0 && len(buffers) > p.maxAttachments {
			return nil, errMaxAttachmentsExceeded
		}
		header.Attachments = len(buffers)

		frame, err := p.encodeString(header, payload, false)
		if err != nil {
			return nil, err
		}
		return append([][]byte{frame}, buffers...), nil
	}

	frame, err := p.encodeString(header, payload, false)
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (p *Parser) encodeString(header *parser.PacketHeader, v any, omitPayload bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)

	buf.WriteByte(header.Type.ToChar())

	if header.IsBinary() {
		buf.WriteString(strconv.Itoa(header.Attachments))
		buf.WriteByte('-')
	}

	if header.Namespace != "" && header.Namespace != "/" {
		buf.WriteString(header.Namespace)
		buf.WriteByte(',')
	}

	if header.ID != nil {
		buf.WriteString(strconv.FormatUint(*header.ID, 10))
	}

	if !omitPayload {
		b, err := p.json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}

	return buf.Bytes(), nil
}
