package sio

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/internal/json"
	"github.com/siocore/sio/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLocalRedisAdapter builds a redisAdapter wired to the namespace's
// in-memory adapter but without a Redis connection, enough to exercise
// the message handling paths.
func newLocalRedisAdapter(t *testing.T, server *Server) *redisAdapter {
	t.Helper()
	nsp := server.Of("/")
	return &redisAdapter{
		local:    nsp.Adapter(),
		nsp:      nsp,
		uid:      "local-node",
		requests: make(map[string]*redisPendingRequest),
	}
}

func TestRedisAdapterOnMessage(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")
	a := newLocalRedisAdapter(t, server)

	msg := redisBroadcastMessage{
		UID:    "peer-node",
		Header: &parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/"},
		Data:   []any{"news", "hello"},
	}
	payload, err := json.Marshal(&msg)
	require.NoError(t, err)

	a.onMessage(payload)
	assert.Equal(t, []string{`2["news","hello"]`}, conn.writtenFrames())
}

func TestRedisAdapterOnMessageIgnoresOwnUID(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn := connect(t, transport, "c1")
	a := newLocalRedisAdapter(t, server)

	msg := redisBroadcastMessage{
		UID:    "local-node",
		Header: &parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/"},
		Data:   []any{"news"},
	}
	payload, err := json.Marshal(&msg)
	require.NoError(t, err)

	a.onMessage(payload)
	assert.Empty(t, conn.writtenFrames())
}

func TestRedisAdapterOnMessageHonorsRooms(t *testing.T) {
	server, transport := newTestServer(t, nil)
	conn1 := connect(t, transport, "c1")
	conn2 := connect(t, transport, "c2")
	socketOf(t, server, conn1, "/").Join("vip")

	a := newLocalRedisAdapter(t, server)

	msg := redisBroadcastMessage{
		UID:    "peer-node",
		Header: &parser.PacketHeader{Type: parser.PacketTypeEvent, Namespace: "/"},
		Data:   []any{"ping"},
		Opts:   redisBroadcastOpts{Rooms: []Room{"vip"}},
	}
	payload, err := json.Marshal(&msg)
	require.NoError(t, err)

	a.onMessage(payload)
	assert.Equal(t, []string{`2["ping"]`}, conn1.writtenFrames())
	assert.Empty(t, conn2.writtenFrames())
}

func TestRedisAdapterOnResponseAggregation(t *testing.T) {
	server, _ := newTestServer(t, nil)
	a := newLocalRedisAdapter(t, server)

	pending := &redisPendingRequest{
		sids:     mapset.NewSet[SocketID](),
		expected: 2,
		done:     make(chan struct{}),
	}
	a.requests["r1"] = pending

	res1, _ := json.Marshal(&redisSocketsResponse{RequestID: "r1", Sockets: []SocketID{"s1"}})
	res2, _ := json.Marshal(&redisSocketsResponse{RequestID: "r1", Sockets: []SocketID{"s2", "s3"}})
	unknown, _ := json.Marshal(&redisSocketsResponse{RequestID: "nope", Sockets: []SocketID{"x"}})

	a.onResponse(unknown)
	a.onResponse(res1)
	select {
	case <-pending.done:
		t.Fatal("done closed before all responses arrived")
	default:
	}

	a.onResponse(res2)
	select {
	case <-pending.done:
	default:
		t.Fatal("done not closed after all responses arrived")
	}

	assert.Equal(t, 3, pending.sids.Cardinality())
}

func TestRedisAdapterSetToSlice(t *testing.T) {
	assert.Nil(t, setToSlice[Room](nil))

	set := mapset.NewSet[Room]("a", "b")
	slice := setToSlice(set)
	assert.ElementsMatch(t, []Room{"a", "b"}, slice)
}
