package sio

import (
	"context"
	"encoding/json"
	"net/url"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/internal/sync"
)

type (
	// NamespaceMiddlewareFunc runs during the connect handshake, before
	// the socket is registered. A non-nil error rejects the connection:
	// the client receives an ERROR packet carrying the message and no
	// connection event fires.
	NamespaceMiddlewareFunc func(socket ServerSocket, handshake *Handshake) error

	NamespaceConnectionFunc func(socket ServerSocket)
)

// Namespace holds the sockets, rooms and handlers of one name. Use
// Server.Of to retrieve or create one.
type Namespace struct {
	name   string
	server *Server

	sockets   *namespaceSocketStore
	connected *namespaceSocketStore

	adapter Adapter
	ackID   uint64

	middleware   []NamespaceMiddlewareFunc
	middlewareMu sync.RWMutex

	connectionHandlers *handlerStore[NamespaceConnectionFunc]
}

func newNamespace(name string, server *Server) *Namespace {
	nsp := &Namespace{
		name:   name,
		server: server,

		sockets:   newNamespaceSocketStore(),
		connected: newNamespaceSocketStore(),

		connectionHandlers: newHandlerStore[NamespaceConnectionFunc](),
	}
	nsp.adapter = server.adapterCreator(nsp)
	return nsp
}

func (n *Namespace) Name() string     { return n.name }
func (n *Namespace) Adapter() Adapter { return n.adapter }
func (n *Namespace) Server() *Server  { return n.server }

// Sockets returns the currently connected sockets of the namespace.
func (n *Namespace) Sockets() []ServerSocket {
	sockets := n.connected.getAll()
	s := make([]ServerSocket, len(sockets))
	for i := range sockets {
		s[i] = sockets[i]
	}
	return s
}

// Use registers a connect middleware. The chain in effect when a
// connect attempt starts is a snapshot: middleware installed during a
// run does not affect in-flight connections.
//
// Installing the first middleware on the default namespace cancels the
// pre-encoded CONNECT reply optimization, since the middleware might
// reject the connection.
func (n *Namespace) Use(f NamespaceMiddlewareFunc) {
	if f == nil {
		panic("sio: Use: nil middleware")
	}
	if n.name == "/" {
		n.server.clearInitialPacket()
	}
	n.middlewareMu.Lock()
	n.middleware = append(n.middleware, f)
	n.middlewareMu.Unlock()
}

func (n *Namespace) OnConnection(f NamespaceConnectionFunc) {
	n.connectionHandlers.on(f)
}

func (n *Namespace) OnceConnection(f NamespaceConnectionFunc) {
	n.connectionHandlers.once(f)
}

func (n *Namespace) OffConnection(f ...NamespaceConnectionFunc) {
	n.connectionHandlers.off(f...)
}

func (n *Namespace) nextAckID() uint64 {
	return atomic.AddUint64(&n.ackID, 1)
}

// Emit broadcasts an event to every connected socket of the namespace.
// Reserved event names are raised locally instead of producing packets.
// A trailing function argument panics: acknowledgements are not
// supported when broadcasting.
func (n *Namespace) Emit(eventName string, v ...any) {
	if IsEventReserved(eventName) {
		n.server.logger.V(1).Info("reserved event dropped", "event", eventName, "namespace", n.name)
		return
	}
	n.operator().Emit(eventName, v...)
}

// Send emits a "message" event.
func (n *Namespace) Send(v ...any) {
	n.Emit("message", v...)
}

func (n *Namespace) To(room ...Room) *BroadcastOperator {
	return n.operator().To(room...)
}

func (n *Namespace) In(room ...Room) *BroadcastOperator {
	return n.operator().In(room...)
}

func (n *Namespace) Except(room ...Room) *BroadcastOperator {
	return n.operator().Except(room...)
}

func (n *Namespace) Compress(compress bool) *BroadcastOperator {
	return n.operator().Compress(compress)
}

func (n *Namespace) Volatile() *BroadcastOperator {
	return n.operator().Volatile()
}

func (n *Namespace) Local() *BroadcastOperator {
	return n.operator().Local()
}

func (n *Namespace) Binary(binary bool) *BroadcastOperator {
	return n.operator().Binary(binary)
}

// AllSockets returns the sids of every connected socket, across all
// nodes of a distributed adapter.
func (n *Namespace) AllSockets(ctx context.Context) (mapset.Set[SocketID], error) {
	return n.operator().AllSockets(ctx)
}

func (n *Namespace) operator() *BroadcastOperator {
	return newBroadcastOperator(n.name, n.adapter)
}

// add runs the connect handshake for one client. The middleware chain
// is snapshotted at entry. On rejection the socket is never registered.
// errConnClosed means the transport went away mid-handshake and nothing
// should be sent back.
func (n *Namespace) add(c *client, auth json.RawMessage, query url.Values) (*serverSocket, error) {
	handshake := newHandshake(c.conn, query, auth)
	socket := newServerSocket(c, n, handshake)

	n.middlewareMu.RLock()
	middleware := make([]NamespaceMiddlewareFunc, len(n.middleware))
	copy(middleware, n.middleware)
	n.middlewareMu.RUnlock()

	for _, f := range middleware {
		if err := f(socket, handshake); err != nil {
			return nil, err
		}
		if c.conn.ReadyState() != ReadyStateOpen {
			return nil, errConnClosed
		}
	}

	if c.conn.ReadyState() != ReadyStateOpen {
		return nil, errConnClosed
	}

	// Registered only after approval: a socket the middlewares rejected
	// is never observable through the store. sockets and connected then
	// differ only between registration and the CONNECT reply.
	n.sockets.set(socket)
	return socket, nil
}

func (n *Namespace) fireConnection(socket *serverSocket) {
	for _, f := range n.connectionHandlers.getAll() {
		f(socket)
	}
}

// remove detaches the socket from the namespace. Idempotent.
func (n *Namespace) remove(socket *serverSocket) {
	n.sockets.remove(socket.id)
	n.connected.remove(socket.id)
}

func (n *Namespace) onEncodeError(err error) {
	n.server.logger.Error(err, "broadcast encode failed", "namespace", n.name)
}
