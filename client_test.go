package sio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConnectBuffering(t *testing.T) {
	server, transport := newTestServer(t, nil)
	server.Of("/chat")

	var order []string
	server.OnConnection(func(socket ServerSocket) {
		order = append(order, socket.Namespace().Name())
	})
	server.Of("/chat").OnConnection(func(socket ServerSocket) {
		order = append(order, socket.Namespace().Name())
	})

	conn := transport.dial("c1")

	// A non-default CONNECT before the root handshake is buffered.
	conn.receive("0/chat,")
	assert.Empty(t, conn.writtenFrames())
	assert.Empty(t, order)

	conn.receive("0")
	assert.Equal(t, []string{"/", "/chat"}, order)
	assert.Equal(t, []string{"0/chat,"}, conn.writtenFrames())
}

func TestClientRootRejectionDrainsBuffer(t *testing.T) {
	server, transport := newTestServer(t, nil)
	server.Of("/chat")
	server.Use(func(socket ServerSocket, handshake *Handshake) error {
		return errors.New("denied")
	})

	conn := transport.dial("c1")
	conn.receive("0/chat,")
	conn.receive("0")

	assert.Equal(t, []string{`4"denied"`, `4/chat,"Invalid namespace"`}, conn.writtenFrames())
}

func TestClientUnknownNamespacePacketDropped(t *testing.T) {
	_, transport := newTestServer(t, nil)

	conn := connect(t, transport, "c1")
	conn.receive(`2/none,["ping"]`)

	assert.Empty(t, conn.writtenFrames())
	assert.False(t, conn.isClosed())
}

func TestClientParseErrorClosesConnection(t *testing.T) {
	_, transport := newTestServer(t, nil)

	conn := connect(t, transport, "c1")
	conn.receive("not a packet")

	assert.True(t, conn.isClosed())
}

func TestClientParseErrorReachesSockets(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")
	socket := socketOf(t, server, conn, "/")

	var got error
	socket.OnError(func(err error) { got = err })

	conn.receive("not a packet")
	assert.Error(t, got)
}

func TestClientTransportClose(t *testing.T) {
	server, transport := newTestServer(t, nil)
	server.Of("/chat")

	conn := connect(t, transport, "c1")
	conn.receive("0/chat,")

	root := socketOf(t, server, conn, "/")
	chat := socketOf(t, server, conn, "/chat")

	var reasons []Reason
	root.OnDisconnect(func(r Reason) { reasons = append(reasons, r) })
	chat.OnDisconnect(func(r Reason) { reasons = append(reasons, r) })

	conn.callbacks.OnClose(ReasonTransportClose)

	assert.ElementsMatch(t, []Reason{ReasonTransportClose, ReasonTransportClose}, reasons)
	assert.False(t, root.Connected())
	assert.False(t, chat.Connected())

	_, ok := server.clients.get("c1")
	assert.False(t, ok)

	// Double close is idempotent.
	conn.callbacks.OnClose(ReasonTransportClose)
	assert.Len(t, reasons, 2)
}

func TestClientBroadcastToClosedSocketIsNoop(t *testing.T) {
	server, transport := newTestServer(t, nil)

	conn1 := connect(t, transport, "c1")
	conn2 := connect(t, transport, "c2")

	conn2.callbacks.OnClose(ReasonTransportClose)
	conn2.clearFrames()

	server.Emit("news")

	assert.Equal(t, []string{`2["news"]`}, conn1.writtenFrames())
	assert.Empty(t, conn2.writtenFrames())
}

func TestClientEventOrdering(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")
	socket := socketOf(t, server, conn, "/")

	var order []int
	socket.OnEvent("step", func(n int) { order = append(order, n) })

	conn.receive(`2["step",1]`)
	conn.receive(`2["step",2]`)
	conn.receive(`2["step",3]`)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestClientListenersAddedInConnectionHandlerSeeEvents(t *testing.T) {
	server, transport := newTestServer(t, nil)

	var received string
	server.OnConnection(func(socket ServerSocket) {
		socket.OnEvent("first", func(v string) { received = v })
	})

	conn := connect(t, transport, "c1")
	conn.receive(`2["first","works"]`)

	require.Equal(t, "works", received)
}
