package sio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceConnect(t *testing.T) {
	server, transport := newTestServer(t, nil)
	chat := server.Of("/chat")

	var connected ServerSocket
	chat.OnConnection(func(socket ServerSocket) { connected = socket })

	conn := connect(t, transport, "c1")
	conn.receive("0/chat,")

	require.NotNil(t, connected)
	assert.Equal(t, SocketID("/chat#c1"), connected.ID())
	assert.Equal(t, []string{"0/chat,"}, conn.writtenFrames())
}

func TestNamespaceMiddlewareReject(t *testing.T) {
	server, transport := newTestServer(t, nil)
	chat := server.Of("/chat")
	chat.Use(func(socket ServerSocket, handshake *Handshake) error {
		if handshake.Query.Get("token") != "secret" {
			return errors.New("not authorized")
		}
		return nil
	})

	var connected bool
	chat.OnConnection(func(ServerSocket) { connected = true })

	conn := connect(t, transport, "c1")
	conn.receive("0/chat,")

	assert.False(t, connected)
	assert.Equal(t, []string{`4/chat,"not authorized"`}, conn.writtenFrames())

	// The query of the CONNECT packet reaches the middleware.
	conn.clearFrames()
	conn.receive("0/chat?token=secret,")
	assert.True(t, connected)
	assert.Equal(t, []string{"0/chat,"}, conn.writtenFrames())
}

func TestNamespaceEmit(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn1 := connect(t, transport, "c1")
	conn2 := connect(t, transport, "c2")

	server.Of("/").Emit("news", "hello")

	assert.Equal(t, []string{`2["news","hello"]`}, conn1.writtenFrames())
	assert.Equal(t, []string{`2["news","hello"]`}, conn2.writtenFrames())
}

func TestNamespaceEmitToRooms(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn1 := connect(t, transport, "c1")
	conn2 := connect(t, transport, "c2")
	conn3 := connect(t, transport, "c3")

	socketOf(t, server, conn1, "/").Join("a")
	socketOf(t, server, conn2, "/").Join("a", "b")
	socketOf(t, server, conn3, "/").Join("c")

	// A socket in several targeted rooms receives the packet once.
	server.To("a", "b").Emit("ping")

	assert.Equal(t, []string{`2["ping"]`}, conn1.writtenFrames())
	assert.Equal(t, []string{`2["ping"]`}, conn2.writtenFrames())
	assert.Empty(t, conn3.writtenFrames())
}

func TestNamespaceExcept(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn1 := connect(t, transport, "c1")
	conn2 := connect(t, transport, "c2")

	socketOf(t, server, conn2, "/").Join("muted")

	server.Except("muted").Emit("ping")

	assert.Equal(t, []string{`2["ping"]`}, conn1.writtenFrames())
	assert.Empty(t, conn2.writtenFrames())
}

func TestNamespaceEmitReservedStaysLocal(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")

	server.Of("/").Emit("disconnect")
	assert.Empty(t, conn.writtenFrames())
}

func TestNamespaceEmitWithCallbackPanics(t *testing.T) {
	server, _ := newTestServer(t, nil)

	assert.Panics(t, func() {
		server.Of("/").Emit("x", func() {})
	})
}

func TestNamespaceAllSockets(t *testing.T) {
	server, transport := newTestServer(t, nil)

	connect(t, transport, "c1")
	connect(t, transport, "c2")

	sids, err := server.AllSockets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sids.Cardinality())
	assert.True(t, sids.Contains(SocketID("c1")))
	assert.True(t, sids.Contains(SocketID("c2")))
}

func TestNamespaceMiddlewareSnapshot(t *testing.T) {
	server, transport := newTestServer(t, nil)
	chat := server.Of("/chat")

	// Middleware installed during a connect run must not affect the
	// in-flight connection.
	chat.Use(func(socket ServerSocket, handshake *Handshake) error {
		chat.Use(func(ServerSocket, *Handshake) error {
			return errors.New("late")
		})
		return nil
	})

	conn := connect(t, transport, "c1")
	conn.receive("0/chat,")
	assert.Equal(t, []string{"0/chat,"}, conn.writtenFrames())
}

func TestNamespaceSockets(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn1 := connect(t, transport, "c1")
	connect(t, transport, "c2")

	assert.Len(t, server.Of("/").Sockets(), 2)

	socketOf(t, server, conn1, "/").Disconnect(false)
	assert.Len(t, server.Of("/").Sockets(), 1)
}
