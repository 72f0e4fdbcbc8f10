package sio

import (
	"context"
	"fmt"
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/parser"
)

// BroadcastOperator stages rooms and flags for one emission. Every
// modifier returns a copy: operators are safe to share and reuse.
type BroadcastOperator struct {
	nsp     string
	adapter Adapter

	rooms       mapset.Set[Room]
	exceptRooms mapset.Set[Room]
	exceptSIDs  mapset.Set[SocketID]
	flags       BroadcastFlags
	binary      bool
}

func newBroadcastOperator(nsp string, adapter Adapter) *BroadcastOperator {
	return &BroadcastOperator{
		nsp:         nsp,
		adapter:     adapter,
		rooms:       mapset.NewSet[Room](),
		exceptRooms: mapset.NewSet[Room](),
		exceptSIDs:  mapset.NewSet[SocketID](),
	}
}

func (b *BroadcastOperator) Clone() *BroadcastOperator {
	n := *b
	n.rooms = b.rooms.Clone()
	n.exceptRooms = b.exceptRooms.Clone()
	n.exceptSIDs = b.exceptSIDs.Clone()
	return &n
}

// To targets the union of the given rooms. Each matching socket
// receives the packet once, regardless of how many rooms it is in.
func (b *BroadcastOperator) To(room ...Room) *BroadcastOperator {
	n := b.Clone()
	for _, r := range room {
		n.rooms.Add(r)
	}
	return n
}

// In is an alias of To.
func (b *BroadcastOperator) In(room ...Room) *BroadcastOperator {
	return b.To(room...)
}

// Except excludes every socket that joined one of the given rooms.
func (b *BroadcastOperator) Except(room ...Room) *BroadcastOperator {
	n := b.Clone()
	for _, r := range room {
		n.exceptRooms.Add(r)
	}
	return n
}

func (b *BroadcastOperator) exceptSID(sid SocketID) *BroadcastOperator {
	n := b.Clone()
	n.exceptSIDs.Add(sid)
	return n
}

func (b *BroadcastOperator) Compress(compress bool) *BroadcastOperator {
	n := b.Clone()
	n.flags.Compress = compress
	return n
}

// Volatile drops the packet for sockets whose transport is not
// currently writable.
func (b *BroadcastOperator) Volatile() *BroadcastOperator {
	n := b.Clone()
	n.flags.Volatile = true
	return n
}

// Local suppresses forwarding to other nodes of a distributed adapter.
func (b *BroadcastOperator) Local() *BroadcastOperator {
	n := b.Clone()
	n.flags.Local = true
	return n
}

// Binary forces binary framing regardless of the payload content.
func (b *BroadcastOperator) Binary(binary bool) *BroadcastOperator {
	n := b.Clone()
	n.binary = binary
	return n
}

func (b *BroadcastOperator) Emit(eventName string, v ...any) {
	if IsEventReserved(eventName) {
		panic(fmt.Errorf("sio: Emit: attempted to broadcast a reserved event: `%s`", eventName))
	}

	if len(v) > 0 {
		if rt := reflect.TypeOf(v[len(v)-1]); rt != nil && rt.Kind() == reflect.Func {
			panic(fmt.Errorf("sio: Emit: callbacks are not supported when broadcasting"))
		}
	}

	header := parser.PacketHeader{
		Type:      parser.PacketTypeEvent,
		Namespace: b.nsp,
	}
	if b.binary {
		header.Type = parser.PacketTypeBinaryEvent
	}

	data := make([]any, 0, len(v)+1)
	data = append(data, eventName)
	data = append(data, v...)

	opts := &BroadcastOptions{
		Rooms:       b.rooms,
		ExceptRooms: b.exceptRooms,
		ExceptSIDs:  b.exceptSIDs,
		Flags:       b.flags,
	}
	b.adapter.Broadcast(&header, data, opts)
}

// Send emits a "message" event.
func (b *BroadcastOperator) Send(v ...any) {
	b.Emit("message", v...)
}

// AllSockets returns the sids targeted by this operator, across all
// nodes of a distributed adapter.
func (b *BroadcastOperator) AllSockets(ctx context.Context) (mapset.Set[SocketID], error) {
	return b.adapter.Sockets(ctx, b.rooms)
}
