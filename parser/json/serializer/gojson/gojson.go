package gojson

import (
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/siocore/sio/parser/json/serializer"
)

type gojsonSerializer struct{}

func (s gojsonSerializer) Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

func (s gojsonSerializer) Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

func (s gojsonSerializer) NewEncoder(w io.Writer) serializer.JSONEncoder {
	return gojson.NewEncoder(w)
}

func (s gojsonSerializer) NewDecoder(r io.Reader) serializer.JSONDecoder {
	return gojson.NewDecoder(r)
}

func New() serializer.JSONSerializer {
	return gojsonSerializer{}
}
