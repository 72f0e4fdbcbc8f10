package sio

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	ijson "github.com/siocore/sio/internal/json"
)

// Handshake is an immutable snapshot captured at socket construction.
type Handshake struct {
	// Headers of the request that opened the transport connection.
	Headers http.Header

	// Date of creation.
	Time time.Time

	// Remote address of the transport connection.
	Address string

	// True when the connection is cross-origin.
	Xdomain bool

	// True when the transport is encrypted.
	Secure bool

	// URL the transport connection was opened with.
	URL *url.URL

	// URL query merged with the query of the CONNECT packet. The
	// per-namespace query takes precedence.
	Query url.Values

	// Raw authentication payload of the CONNECT packet.
	Auth json.RawMessage
}

// UnmarshalAuth decodes the authentication payload into v. Returns an
// error when the CONNECT packet carried no payload.
func (h *Handshake) UnmarshalAuth(v any) error {
	if len(h.Auth) == 0 {
		return errors.New("sio: handshake: no auth payload")
	}
	return ijson.Unmarshal(h.Auth, v)
}

func newHandshake(conn Conn, query url.Values, auth json.RawMessage) *Handshake {
	merged := make(url.Values)
	if u := conn.URL(); u != nil {
		for k, v := range u.Query() {
			merged[k] = v
		}
	}
	for k, v := range query {
		merged[k] = v
	}

	headers := conn.Headers()
	return &Handshake{
		Headers: headers,
		Time:    time.Now(),
		Address: conn.RemoteAddr(),
		Xdomain: headers.Get("Origin") != "",
		Secure:  conn.Secure(),
		URL:     conn.URL(),
		Query:   merged,
		Auth:    auth,
	}
}
