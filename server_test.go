package sio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConnect(t *testing.T) {
	server, transport := newTestServer(t, nil)

	var connected ServerSocket
	server.OnConnection(func(socket ServerSocket) {
		connected = socket
	})

	conn := connect(t, transport, "c1")

	require.NotNil(t, connected)
	assert.Equal(t, SocketID("c1"), connected.ID())
	assert.Equal(t, "/", connected.Namespace().Name())
	assert.True(t, connected.Connected())

	// The CONNECT reply was piggy-backed on the transport handshake.
	assert.Equal(t, []string{"0"}, transport.getInitialFrames())
	assert.Empty(t, conn.writtenFrames())
}

func TestServerOfCanonicalizesName(t *testing.T) {
	server, _ := newTestServer(t, nil)

	chat := server.Of("chat")
	assert.Equal(t, "/chat", chat.Name())
	assert.Same(t, chat, server.Of("/chat"))
}

func TestServerMiddlewareClearsInitialPacket(t *testing.T) {
	server, transport := newTestServer(t, nil)
	require.NotEmpty(t, transport.getInitialFrames())

	var middlewareRan bool
	server.Use(func(socket ServerSocket, handshake *Handshake) error {
		middlewareRan = true
		return nil
	})
	assert.Empty(t, transport.getInitialFrames())

	// Connections accepted afterwards get an explicit CONNECT reply.
	conn := connect(t, transport, "c1")
	assert.True(t, middlewareRan)
	assert.Equal(t, []string{"0"}, conn.writtenFrames())
}

func TestServerMiddlewareReject(t *testing.T) {
	server, transport := newTestServer(t, nil)

	server.Use(func(socket ServerSocket, handshake *Handshake) error {
		return errors.New("not authorized")
	})

	var connected bool
	server.OnConnection(func(ServerSocket) { connected = true })

	conn := connect(t, transport, "c1")

	assert.False(t, connected)
	assert.Equal(t, []string{`4"not authorized"`}, conn.writtenFrames())

	_, ok := server.clients.get("c1")
	require.True(t, ok)
	c, _ := server.clients.get("c1")
	_, hasSocket := c.sockets.get("/")
	assert.False(t, hasSocket)
}

func TestServerInvalidNamespace(t *testing.T) {
	_, transport := newTestServer(t, nil)

	conn := connect(t, transport, "c1")
	conn.receive("0/nope,")

	assert.Equal(t, []string{`4/nope,"Invalid namespace"`}, conn.writtenFrames())
}

func TestServerEmitDelegatesToDefaultNamespace(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn := connect(t, transport, "c1")
	server.Emit("news", "hello")

	assert.Equal(t, []string{`2["news","hello"]`}, conn.writtenFrames())
}

func TestServerClose(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn := connect(t, transport, "c1")
	socket := socketOf(t, server, conn, "/")

	var reason Reason
	socket.OnDisconnect(func(r Reason) { reason = r })

	require.NoError(t, server.Close())

	assert.Equal(t, ReasonServerShuttingDown, reason)
	assert.False(t, socket.Connected())
	assert.True(t, transport.isClosed())
}

func TestServerHandshake(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn := transport.dial("c1")
	conn.headers.Set("Origin", "http://example.com")
	conn.receive(`0{"token":"abc"}`)

	socket := socketOf(t, server, conn, "/")
	handshake := socket.Handshake()

	assert.Equal(t, `{"token":"abc"}`, string(handshake.Auth))
	assert.Equal(t, "127.0.0.1:4242", handshake.Address)
	assert.True(t, handshake.Xdomain)
	assert.Equal(t, "4", handshake.Query.Get("EIO"))

	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, handshake.UnmarshalAuth(&auth))
	assert.Equal(t, "abc", auth.Token)
}

func TestServerHandshakeNoAuthPayload(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")

	socket := socketOf(t, server, conn, "/")
	var auth map[string]any
	assert.Error(t, socket.Handshake().UnmarshalAuth(&auth))
}
