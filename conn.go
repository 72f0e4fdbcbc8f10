package sio

import (
	"net/http"
	"net/url"
)

type ReadyState string

const (
	ReadyStateOpening ReadyState = "opening"
	ReadyStateOpen    ReadyState = "open"
	ReadyStateClosing ReadyState = "closing"
	ReadyStateClosed  ReadyState = "closed"
)

type WriteOptions struct {
	Compress bool
}

// Conn is one long-lived transport connection. Implementations must
// invoke the attached callbacks sequentially: packets of one
// connection are never processed concurrently with each other.
type Conn interface {
	// ID is unique within the process.
	ID() string
	ReadyState() ReadyState

	// Writable reports whether a frame written right now would go out
	// immediately. Volatile packets are dropped while it is false.
	Writable() bool
	Write(frame []byte, opts WriteOptions) error
	Close() error

	Headers() http.Header
	RemoteAddr() string
	Secure() bool
	URL() *url.URL
}

type ConnCallbacks struct {
	OnData  func(data []byte)
	OnError func(err error)
	OnClose func(reason Reason)
}

// Transport produces Conns and hands them to the server. The initial
// frames, when set, are piggy-backed on the handshake response of every
// subsequently accepted connection.
type Transport interface {
	OnConnection(handler func(conn Conn, attach func(*ConnCallbacks)))
	SetInitialFrames(frames [][]byte)
	Close() error
}
