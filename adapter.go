package sio

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/parser"
)

type (
	AdapterCreator func(nsp *Namespace) Adapter

	// SocketID addresses one logical socket. It equals the transport
	// connection id on the default namespace and
	// "<namespace>#<connection id>" elsewhere. Every connected socket
	// is implicitly a member of the room named after its own id.
	SocketID string

	Room string
)

// Adapter tracks room membership and fans packets out to sockets. The
// in-memory adapter is the reference semantics; distributed adapters
// must preserve them for the local node and forward non-Local
// broadcasts to peers.
//
// All membership operations are idempotent against unknown sids and
// rooms. A broadcast to a since-closed socket is a silent no-op.
type Adapter interface {
	// ServerCount is the number of nodes participating in this
	// adapter, including the local one.
	ServerCount() int
	Close()

	AddAll(sid SocketID, rooms []Room)
	Delete(sid SocketID, room Room)
	DeleteAll(sid SocketID)

	// Broadcast encodes the packet once and writes the frames to every
	// targeted socket. Empty opts.Rooms targets every sid known to the
	// adapter.
	Broadcast(header *parser.PacketHeader, v []any, opts *BroadcastOptions)

	// Sockets returns the sids present in the given rooms, or all sids
	// when rooms is empty. Distributed adapters aggregate across nodes,
	// bounded by ctx.
	Sockets(ctx context.Context, rooms mapset.Set[Room]) (mapset.Set[SocketID], error)

	// SocketRooms returns the rooms containing sid.
	SocketRooms(sid SocketID) (rooms mapset.Set[Room], ok bool)
}

type BroadcastFlags struct {
	// Compress is handed through to the transport with every frame.
	Compress bool

	// Volatile drops the packet for sockets whose transport is not
	// currently writable instead of queueing it.
	Volatile bool

	// Local suppresses forwarding to other nodes.
	Local bool
}

type BroadcastOptions struct {
	Rooms       mapset.Set[Room]
	ExceptRooms mapset.Set[Room]
	ExceptSIDs  mapset.Set[SocketID]
	Flags       BroadcastFlags
}

func NewBroadcastOptions() *BroadcastOptions {
	return &BroadcastOptions{
		Rooms:       mapset.NewThreadUnsafeSet[Room](),
		ExceptRooms: mapset.NewThreadUnsafeSet[Room](),
		ExceptSIDs:  mapset.NewThreadUnsafeSet[SocketID](),
	}
}
