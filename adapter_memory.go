package sio

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/internal/sync"
	"github.com/siocore/sio/parser"
)

// inMemoryAdapter is the default single-node adapter.
type inMemoryAdapter struct {
	mu    sync.Mutex
	rooms map[Room]mapset.Set[SocketID]
	sids  map[SocketID]mapset.Set[Room]

	nsp    *Namespace
	parser parser.Parser
}

func newInMemoryAdapter(nsp *Namespace) Adapter {
	return &inMemoryAdapter{
		rooms:  make(map[Room]mapset.Set[SocketID]),
		sids:   make(map[SocketID]mapset.Set[Room]),
		nsp:    nsp,
		parser: nsp.server.parserCreator(),
	}
}

func (a *inMemoryAdapter) ServerCount() int { return 1 }

func (a *inMemoryAdapter) Close() {}

func (a *inMemoryAdapter) AddAll(sid SocketID, rooms []Room) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		s = mapset.NewThreadUnsafeSet[Room]()
		a.sids[sid] = s
	}

	for _, room := range rooms {
		s.Add(room)

		r, ok := a.rooms[room]
		if !ok {
			r = mapset.NewThreadUnsafeSet[SocketID]()
			a.rooms[room] = r
		}
		r.Add(sid)
	}
}

func (a *inMemoryAdapter) Delete(sid SocketID, room Room) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.sids[sid]; ok {
		s.Remove(room)
	}
	a.delete(sid, room)
}

func (a *inMemoryAdapter) delete(sid SocketID, room Room) {
	if r, ok := a.rooms[room]; ok {
		r.Remove(sid)
		if r.Cardinality() == 0 {
			delete(a.rooms, room)
		}
	}
}

func (a *inMemoryAdapter) DeleteAll(sid SocketID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		return
	}

	s.Each(func(room Room) bool {
		a.delete(sid, room)
		return false
	})
	delete(a.sids, sid)
}

func (a *inMemoryAdapter) Broadcast(header *parser.PacketHeader, v []any, opts *BroadcastOptions) {
	buffers, err := a.parser.Encode(header, &v)
	if err != nil {
		a.nsp.onEncodeError(wrapInternalError(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.apply(opts, func(sid SocketID) {
		a.nsp.connected.sendBuffers(sid, buffers, opts.Flags)
	})
}

func (a *inMemoryAdapter) Sockets(_ context.Context, rooms mapset.Set[Room]) (mapset.Set[SocketID], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sids := mapset.NewSet[SocketID]()
	opts := NewBroadcastOptions()
	if rooms != nil {
		opts.Rooms = rooms
	}

	a.apply(opts, func(sid SocketID) {
		sids.Add(sid)
	})
	return sids, nil
}

func (a *inMemoryAdapter) SocketRooms(sid SocketID) (mapset.Set[Room], bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sids[sid]
	if !ok {
		return nil, false
	}

	rooms := mapset.NewSet[Room]()
	s.Each(func(room Room) bool {
		rooms.Add(room)
		return false
	})
	return rooms, true
}

// apply invokes callback once per targeted sid. Callers hold a.mu.
func (a *inMemoryAdapter) apply(opts *BroadcastOptions, callback func(sid SocketID)) {
	exceptSids := a.computeExceptSids(opts)

	if opts.Rooms.Cardinality() > 0 {
		ids := mapset.NewThreadUnsafeSet[SocketID]()
		opts.Rooms.Each(func(room Room) bool {
			r, ok := a.rooms[room]
			if !ok {
				return false
			}
			r.Each(func(sid SocketID) bool {
				if ids.Contains(sid) || exceptSids.Contains(sid) {
					return false
				}
				ids.Add(sid)
				callback(sid)
				return false
			})
			return false
		})
	} else {
		for sid := range a.sids {
			if !exceptSids.Contains(sid) {
				callback(sid)
			}
		}
	}
}

func (a *inMemoryAdapter) computeExceptSids(opts *BroadcastOptions) mapset.Set[SocketID] {
	exceptSids := mapset.NewThreadUnsafeSet[SocketID]()

	if opts.ExceptSIDs != nil {
		opts.ExceptSIDs.Each(func(sid SocketID) bool {
			exceptSids.Add(sid)
			return false
		})
	}
	if opts.ExceptRooms != nil {
		opts.ExceptRooms.Each(func(room Room) bool {
			if r, ok := a.rooms[room]; ok {
				r.Each(func(sid SocketID) bool {
					exceptSids.Add(sid)
					return false
				})
			}
			return false
		})
	}
	return exceptSids
}
