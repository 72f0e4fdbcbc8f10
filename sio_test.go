package sio

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-logr/logr"
	"github.com/siocore/sio/internal/sync"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-process transport connection recording every
// written frame.
type fakeConn struct {
	id string

	mu       sync.Mutex
	state    ReadyState
	writable bool
	frames   []string
	closed   bool

	callbacks *ConnCallbacks

	headers http.Header
	url     *url.URL
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Writable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writable
}

func (c *fakeConn) setWritable(writable bool) {
	c.mu.Lock()
	c.writable = writable
	c.mu.Unlock()
}

func (c *fakeConn) Write(frame []byte, opts WriteOptions) error {
	c.mu.Lock()
	c.frames = append(c.frames, string(frame))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = ReadyStateClosed
	callbacks := c.callbacks
	c.mu.Unlock()

	if callbacks != nil {
		callbacks.OnClose(ReasonForcedClose)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Headers() http.Header { return c.headers }
func (c *fakeConn) RemoteAddr() string   { return "127.0.0.1:4242" }
func (c *fakeConn) Secure() bool         { return false }
func (c *fakeConn) URL() *url.URL        { return c.url }

// receive feeds one inbound frame to the server.
func (c *fakeConn) receive(data string) {
	c.callbacks.OnData([]byte(data))
}

func (c *fakeConn) writtenFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]string, len(c.frames))
	copy(frames, c.frames)
	return frames
}

func (c *fakeConn) clearFrames() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fakeTransport struct {
	mu            sync.Mutex
	handler       func(conn Conn, attach func(*ConnCallbacks))
	initialFrames []string
	closed        bool
}

func newFakeTransport() *fakeTransport {
	return new(fakeTransport)
}

func (t *fakeTransport) OnConnection(handler func(conn Conn, attach func(*ConnCallbacks))) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

func (t *fakeTransport) SetInitialFrames(frames [][]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialFrames = nil
	for _, frame := range frames {
		t.initialFrames = append(t.initialFrames, string(frame))
	}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) getInitialFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames := make([]string, len(t.initialFrames))
	copy(frames, t.initialFrames)
	return frames
}

// dial accepts a new connection on the transport.
func (t *fakeTransport) dial(id string) *fakeConn {
	u, _ := url.Parse("http://example.com/socket.io/?EIO=4&transport=polling")
	conn := &fakeConn{
		id:       id,
		state:    ReadyStateOpen,
		writable: true,
		headers:  make(http.Header),
		url:      u,
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	handler(conn, func(callbacks *ConnCallbacks) {
		conn.callbacks = callbacks
	})
	return conn
}

func newTestServer(t *testing.T, config *ServerConfig) (*Server, *fakeTransport) {
	t.Helper()
	if config == nil {
		config = new(ServerConfig)
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}

	server := NewServer(config)
	transport := newFakeTransport()
	server.Attach(transport)
	return server, transport
}

// connect dials a connection and completes the default namespace
// handshake.
func connect(t *testing.T, transport *fakeTransport, id string) *fakeConn {
	t.Helper()
	conn := transport.dial(id)
	conn.receive("0")
	return conn
}

func socketOf(t *testing.T, server *Server, conn *fakeConn, nsp string) *serverSocket {
	t.Helper()
	c, ok := server.clients.get(conn.id)
	require.True(t, ok, "client %s not found", conn.id)
	socket, ok := c.sockets.get(nsp)
	require.True(t, ok, "socket for namespace %s not found", nsp)
	return socket
}
