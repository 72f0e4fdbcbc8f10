// Package jsonparser implements the default text wire codec:
// `<type>[<attachments>-][<namespace>,][<id>][json payload]`.
//
// Binary values are carried as separate attachment frames and referenced
// from the JSON payload through `{"_placeholder":true,"num":n}` objects.
package jsonparser

import (
	"github.com/siocore/sio/parser"
	"github.com/siocore/sio/parser/json/serializer"
	"github.com/siocore/sio/parser/json/serializer/stdjson"
)

type Parser struct {
	json           serializer.JSONSerializer
	maxAttachments int

	// Reconstruction state of the packet currently being received.
	r *reconstructor
}

// NewCreator returns a parser.Creator backed by the given JSON
// serializer. maxAttachments of 0 means no limit. A nil serializer
// falls back to encoding/json.
func NewCreator(maxAttachments int, json serializer.JSONSerializer) parser.Creator {
	if json == nil {
		json = stdjson.New()
	}
	return func() parser.Parser {
		return &Parser{
			json:           json,
			maxAttachments: maxAttachments,
		}
	}
}

func (p *Parser) Reset() {
	p.r = nil
}
