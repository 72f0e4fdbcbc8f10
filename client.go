package sio

import (
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/siocore/sio/internal/sync"
	"github.com/siocore/sio/parser"
)

// client owns one transport connection and demultiplexes its packets
// among the per-namespace sockets.
type client struct {
	server *Server
	conn   Conn

	// parser state is only touched from the conn callback goroutine:
	// the Conn contract serializes OnData and OnClose.
	parser parser.Parser

	sockets *clientSocketStore

	// Non-default CONNECTs arriving before the default namespace is
	// approved are buffered and replayed in order afterwards.
	connectBuffer []pendingConnect
	rootConnected bool
	connectMu     sync.Mutex

	// True when the CONNECT reply for "/" was already delivered with
	// the transport handshake.
	initialPacketSent bool

	closeOnce sync.Once
}

type pendingConnect struct {
	nsp   *Namespace
	query url.Values
	auth  json.RawMessage
}

func newClient(server *Server, conn Conn, initialPacketSent bool) *client {
	return &client{
		server:            server,
		conn:              conn,
		parser:            server.parserCreator(),
		sockets:           newClientSocketStore(),
		initialPacketSent: initialPacketSent,
	}
}

func (c *client) onData(data []byte) {
	if err := c.parser.Add(data, c.onFinishPacket); err != nil {
		// Protocol error. Fatal for this connection only.
		c.onError(err)
	}
}

func (c *client) onFinishPacket(header *parser.PacketHeader, eventName string, decode parser.Decode) {
	if header.Type == parser.PacketTypeConnect {
		c.connect(header, decode)
		return
	}

	socket, ok := c.sockets.get(header.Namespace)
	if !ok {
		c.server.logger.V(1).Info("packet for unknown namespace dropped", "namespace", header.Namespace, "conn", c.conn.ID())
		return
	}
	socket.onPacket(header, eventName, decode)
}

func (c *client) connect(header *parser.PacketHeader, decode parser.Decode) {
	name, rawQuery, _ := strings.Cut(header.Namespace, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		c.sendErrorPacket(name, "Invalid namespace")
		return
	}

	var auth json.RawMessage
	values, err := decode(reflect.TypeOf(&auth))
	if err != nil {
		c.onError(err)
		return
	}
	if len(values) == 1 {
		auth = *values[0].Interface().(*json.RawMessage)
	}

	nsp, ok := c.server.nsps.get(name)
	if !ok {
		nsp, ok = c.server.checkNamespace(name, query)
	}
	if !ok {
		c.sendErrorPacket(name, "Invalid namespace")
		return
	}

	c.doConnect(nsp, query, auth)
}

func (c *client) doConnect(nsp *Namespace, query url.Values, auth json.RawMessage) {
	if nsp.Name() != "/" {
		c.connectMu.Lock()
		if !c.rootConnected {
			c.connectBuffer = append(c.connectBuffer, pendingConnect{nsp: nsp, query: query, auth: auth})
			c.connectMu.Unlock()
			return
		}
		c.connectMu.Unlock()
	}

	socket, err := nsp.add(c, auth, query)
	if err != nil {
		if errors.Is(err, errConnClosed) {
			return
		}
		c.sendErrorPacket(nsp.Name(), err.Error())
		if nsp.Name() == "/" {
			c.rejectBuffered()
		}
		return
	}

	c.sockets.set(socket)
	replySent := nsp.Name() == "/" && c.initialPacketSent
	socket.onConnect(replySent)
	nsp.fireConnection(socket)

	if nsp.Name() == "/" {
		c.replayBuffered()
	}
}

// replayBuffered runs the CONNECTs that arrived before the default
// namespace was approved, in arrival order.
func (c *client) replayBuffered() {
	c.connectMu.Lock()
	c.rootConnected = true
	buffered := c.connectBuffer
	c.connectBuffer = nil
	c.connectMu.Unlock()

	for _, p := range buffered {
		c.doConnect(p.nsp, p.query, p.auth)
	}
}

// rejectBuffered drains the connect buffer after the default namespace
// was rejected. Every buffered attempt is refused.
func (c *client) rejectBuffered() {
	c.connectMu.Lock()
	buffered := c.connectBuffer
	c.connectBuffer = nil
	c.connectMu.Unlock()

	for _, p := range buffered {
		c.sendErrorPacket(p.nsp.Name(), "Invalid namespace")
	}
}

// encode may run on any goroutine: Encode is concurrency-safe by
// contract, and handlers running under Add encode their replies on the
// same parser.
func (c *client) encode(header *parser.PacketHeader, v any) ([][]byte, error) {
	return c.parser.Encode(header, v)
}

// sendBuffers writes pre-encoded frames. Packets to a connection that
// is not open are dropped silently, as are volatile packets while the
// transport is not writable.
func (c *client) sendBuffers(flags BroadcastFlags, buffers ...[]byte) {
	if c.conn.ReadyState() != ReadyStateOpen {
		return
	}
	if flags.Volatile && !c.conn.Writable() {
		return
	}

	for _, buffer := range buffers {
		if err := c.conn.Write(buffer, WriteOptions{Compress: flags.Compress}); err != nil {
			c.onError(err)
			return
		}
	}
}

func (c *client) sendErrorPacket(nsp string, message string) {
	header := parser.PacketHeader{
		Type:      parser.PacketTypeError,
		Namespace: nsp,
	}
	buffers, err := c.encode(&header, &message)
	if err != nil {
		c.server.logger.Error(wrapInternalError(err), "error packet encode failed", "conn", c.conn.ID())
		return
	}
	c.sendBuffers(BroadcastFlags{}, buffers...)
}

func (c *client) onError(err error) {
	for _, socket := range c.sockets.getAll() {
		socket.onError(err)
	}
	c.conn.Close()
}

// disconnectAll tears down every socket without sending DISCONNECT
// packets. The transport close is the peer-visible signal.
func (c *client) disconnectAll() {
	for _, socket := range c.sockets.getAll() {
		socket.onClose(ReasonForcedClose)
	}
}

func (c *client) close(reason Reason) {
	c.conn.Close()
	c.onClose(reason)
}

// onClose is the authoritative cleanup trigger. Idempotent.
func (c *client) onClose(reason Reason) {
	c.closeOnce.Do(func() {
		for _, socket := range c.sockets.getAll() {
			socket.onClose(reason)
		}

		c.connectMu.Lock()
		c.connectBuffer = nil
		c.connectMu.Unlock()

		c.parser.Reset()

		c.server.clients.remove(c.conn.ID())
	})
}

func (c *client) remove(socket *serverSocket) {
	c.sockets.remove(socket)
}
