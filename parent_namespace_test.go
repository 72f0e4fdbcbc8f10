package sio

import (
	"errors"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentNamespaceRegexp(t *testing.T) {
	server, transport := newTestServer(t, nil)

	parent := server.OfRegexp(regexp.MustCompile(`^/dyn-\d+$`))

	var connected []string
	parent.OnConnection(func(socket ServerSocket) {
		connected = append(connected, socket.Namespace().Name())
	})

	conn := connect(t, transport, "c1")
	conn.receive("0/dyn-1,")

	assert.Equal(t, []string{"/dyn-1"}, connected)
	assert.Equal(t, []string{"0/dyn-1,"}, conn.writtenFrames())

	// The child is now a static namespace.
	child, ok := server.nsps.get("/dyn-1")
	require.True(t, ok)
	assert.Equal(t, "/dyn-1", child.Name())

	// Names the matcher refuses are still invalid.
	conn.clearFrames()
	conn.receive("0/dyn-x,")
	assert.Equal(t, []string{`4/dyn-x,"Invalid namespace"`}, conn.writtenFrames())
}

func TestParentNamespaceMiddlewareInherited(t *testing.T) {
	server, transport := newTestServer(t, nil)

	parent := server.OfFn(stringMatcher("/private"))
	parent.Use(func(socket ServerSocket, handshake *Handshake) error {
		return errors.New("members only")
	})

	conn := connect(t, transport, "c1")
	conn.receive("0/private,")

	assert.Equal(t, []string{`4/private,"members only"`}, conn.writtenFrames())
}

func TestParentNamespaceMatcherOrder(t *testing.T) {
	server, transport := newTestServer(t, nil)

	var winner string
	first := server.OfRegexp(regexp.MustCompile(`^/room-`))
	first.OnConnection(func(ServerSocket) { winner = "first" })

	second := server.OfRegexp(regexp.MustCompile(`^/room-\d+$`))
	second.OnConnection(func(ServerSocket) { winner = "second" })

	conn := connect(t, transport, "c1")
	conn.receive("0/room-1,")

	assert.Equal(t, "first", winner)
}

func TestParentNamespaceSyntheticNames(t *testing.T) {
	server, _ := newTestServer(t, nil)

	first := server.OfFn(stringMatcher("/a"))
	second := server.OfFn(stringMatcher("/b"))

	assert.Equal(t, "/_1", first.Name())
	assert.Equal(t, "/_2", second.Name())
}

func TestParentNamespaceEmit(t *testing.T) {
	server, transport := newTestServer(t, nil)

	parent := server.OfRegexp(regexp.MustCompile(`^/dyn-\d+$`))

	conn1 := connect(t, transport, "c1")
	conn1.receive("0/dyn-1,")
	conn2 := connect(t, transport, "c2")
	conn2.receive("0/dyn-2,")
	conn1.clearFrames()
	conn2.clearFrames()

	parent.Emit("news", "hello")

	assert.Equal(t, []string{`2/dyn-1,["news","hello"]`}, conn1.writtenFrames())
	assert.Equal(t, []string{`2/dyn-2,["news","hello"]`}, conn2.writtenFrames())
}

func TestParentNamespaceEmitToRoom(t *testing.T) {
	server, transport := newTestServer(t, nil)

	parent := server.OfRegexp(regexp.MustCompile(`^/dyn-\d+$`))

	conn1 := connect(t, transport, "c1")
	conn1.receive("0/dyn-1,")
	conn2 := connect(t, transport, "c2")
	conn2.receive("0/dyn-1,")

	socketOf(t, server, conn1, "/dyn-1").Join("vip")
	conn1.clearFrames()
	conn2.clearFrames()

	parent.To("vip").Emit("ping")

	assert.Equal(t, []string{`2/dyn-1,["ping"]`}, conn1.writtenFrames())
	assert.Empty(t, conn2.writtenFrames())
}

func TestParentNamespaceStaticBypass(t *testing.T) {
	server, transport := newTestServer(t, nil)

	var matcherCalls int
	server.OfFn(func(name string, _ url.Values) bool {
		matcherCalls++
		return name == "/dyn"
	})

	conn := connect(t, transport, "c1")
	conn.receive("0/dyn,")
	require.Equal(t, 1, matcherCalls)

	// Once the child exists, the matcher is no longer consulted.
	conn2 := connect(t, transport, "c2")
	conn2.receive("0/dyn,")
	assert.Equal(t, 1, matcherCalls)
}
