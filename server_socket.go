package sio

import (
	"fmt"
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/siocore/sio/internal/sync"
	"github.com/siocore/sio/parser"
)

type (
	SocketDisconnectingFunc func(reason Reason)
	SocketDisconnectFunc    func(reason Reason)
	SocketErrorFunc         func(err error)

	// EventMiddlewareFunc runs before the event handlers of a socket.
	// A non-nil error suppresses the handlers and is reported back to
	// the client as an ERROR packet.
	EventMiddlewareFunc func(eventName string, v []any) error
)

// ServerSocket is one logical connection of a client to a namespace.
type ServerSocket interface {
	// ID is unique within the server. It equals the transport
	// connection id on the default namespace and
	// "<namespace>#<connection id>" elsewhere.
	ID() SocketID

	Server() *Server
	Namespace() *Namespace
	Handshake() *Handshake
	Connected() bool

	// Emit sends an event to the client. A trailing function argument
	// registers an acknowledgement handler invoked when the client
	// acks. Reserved event names are raised on the local listener
	// registry instead of producing a packet.
	Emit(eventName string, v ...any)
	// Send emits a "message" event.
	Send(v ...any)

	Volatile() Emitter
	Compress(compress bool) Emitter
	Binary(binary bool) Emitter

	// To returns a broadcast operator targeting the given rooms,
	// excluding this socket.
	To(room ...Room) *BroadcastOperator
	// In is an alias of To.
	In(room ...Room) *BroadcastOperator
	Except(room ...Room) *BroadcastOperator
	// Broadcast targets every socket of the namespace but this one.
	Broadcast() *BroadcastOperator
	Local() *BroadcastOperator

	Join(room ...Room)
	Leave(room Room)
	Rooms() mapset.Set[Room]

	// Use registers an event middleware. Middlewares run in
	// registration order before the handlers of every inbound event.
	Use(f EventMiddlewareFunc)

	OnEvent(eventName string, handler any)
	OnceEvent(eventName string, handler any)
	OffEvent(eventName string, handler ...any)
	OffAll()

	OnError(f SocketErrorFunc)
	OnceError(f SocketErrorFunc)
	OffError(f ...SocketErrorFunc)

	OnDisconnecting(f SocketDisconnectingFunc)
	OnceDisconnecting(f SocketDisconnectingFunc)
	OffDisconnecting(f ...SocketDisconnectingFunc)

	OnDisconnect(f SocketDisconnectFunc)
	OnceDisconnect(f SocketDisconnectFunc)
	OffDisconnect(f ...SocketDisconnectFunc)

	// Disconnect removes the socket from its namespace. A DISCONNECT
	// packet is sent to the client. If close is true the whole
	// transport connection is terminated, taking every other namespace
	// connection of the client down with it.
	Disconnect(close bool)
}

type serverSocket struct {
	id        SocketID
	nsp       *Namespace
	client    *client
	handshake *Handshake

	connected   bool
	connectedMu sync.RWMutex
	closeOnce   sync.Once

	acks   map[uint64]*ackHandler
	acksMu sync.Mutex

	middleware   []EventMiddlewareFunc
	middlewareMu sync.RWMutex

	eventHandlers         *eventHandlerStore
	errorHandlers         *handlerStore[SocketErrorFunc]
	disconnectingHandlers *handlerStore[SocketDisconnectingFunc]
	disconnectHandlers    *handlerStore[SocketDisconnectFunc]
}

func newServerSocket(c *client, nsp *Namespace, handshake *Handshake) *serverSocket {
	id := SocketID(c.conn.ID())
	if nsp.Name() != "/" {
		id = SocketID(nsp.Name() + "#" + c.conn.ID())
	}

	return &serverSocket{
		id:        id,
		nsp:       nsp,
		client:    c,
		handshake: handshake,

		acks: make(map[uint64]*ackHandler),

		eventHandlers:         newEventHandlerStore(),
		errorHandlers:         newHandlerStore[SocketErrorFunc](),
		disconnectingHandlers: newHandlerStore[SocketDisconnectingFunc](),
		disconnectHandlers:    newHandlerStore[SocketDisconnectFunc](),
	}
}

func (s *serverSocket) ID() SocketID          { return s.id }
func (s *serverSocket) Server() *Server       { return s.nsp.server }
func (s *serverSocket) Namespace() *Namespace { return s.nsp }
func (s *serverSocket) Handshake() *Handshake { return s.handshake }

func (s *serverSocket) Connected() bool {
	s.connectedMu.RLock()
	defer s.connectedMu.RUnlock()
	return s.connected
}

// onConnect completes the handshake after the connect middlewares
// approved the socket. The CONNECT reply is skipped when it was already
// delivered with the transport handshake.
func (s *serverSocket) onConnect(replySent bool) {
	s.connectedMu.Lock()
	s.connected = true
	s.connectedMu.Unlock()

	s.Join(Room(s.id))
	s.nsp.connected.set(s)

	if !replySent {
		header := parser.PacketHeader{
			Type:      parser.PacketTypeConnect,
			Namespace: s.nsp.Name(),
		}
		s.sendPacket(BroadcastFlags{}, &header, nil)
	}
}

func (s *serverSocket) Emit(eventName string, v ...any) {
	s.emit(eventName, BroadcastFlags{}, false, v...)
}

func (s *serverSocket) Send(v ...any) {
	s.Emit("message", v...)
}

func (s *serverSocket) Volatile() Emitter {
	return Emitter{socket: s}.Volatile()
}

func (s *serverSocket) Compress(compress bool) Emitter {
	return Emitter{socket: s}.Compress(compress)
}

func (s *serverSocket) Binary(binary bool) Emitter {
	return Emitter{socket: s}.Binary(binary)
}

func (s *serverSocket) emit(eventName string, flags BroadcastFlags, binary bool, v ...any) {
	if IsEventReserved(eventName) {
		s.emitReserved(eventName, v...)
		return
	}

	// Emitting on a disconnected socket is a no-op, even while the
	// transport connection is still up for other namespaces.
	if !s.Connected() {
		return
	}

	header := parser.PacketHeader{
		Type:      parser.PacketTypeEvent,
		Namespace: s.nsp.Name(),
	}
	if binary {
		header.Type = parser.PacketTypeBinaryEvent
	}

	if len(v) > 0 {
		if rt := reflect.TypeOf(v[len(v)-1]); rt != nil && rt.Kind() == reflect.Func {
			id := s.nsp.nextAckID()
			header.ID = &id

			s.acksMu.Lock()
			s.acks[id] = newAckHandler(v[len(v)-1])
			s.acksMu.Unlock()

			v = v[:len(v)-1]
		}
	}

	data := make([]any, 0, len(v)+1)
	data = append(data, eventName)
	data = append(data, v...)
	s.sendPacket(flags, &header, &data)
}

// emitReserved raises a reserved event on the local listener registry.
// Nothing goes over the wire.
func (s *serverSocket) emitReserved(eventName string, v ...any) {
	switch eventName {
	case "error":
		if len(v) == 1 {
			if err, ok := v[0].(error); ok {
				s.onError(err)
				return
			}
		}
		s.onError(fmt.Errorf("sio: %v", v))
	case "disconnecting":
		for _, f := range s.disconnectingHandlers.getAll() {
			f(reasonFromArgs(v))
		}
	case "disconnect":
		for _, f := range s.disconnectHandlers.getAll() {
			f(reasonFromArgs(v))
		}
	default:
		s.nsp.server.logger.V(1).Info("reserved event dropped", "event", eventName, "sid", s.id)
	}
}

func reasonFromArgs(v []any) Reason {
	if len(v) == 1 {
		switch t := v[0].(type) {
		case Reason:
			return t
		case string:
			return Reason(t)
		}
	}
	return ReasonForcedClose
}

func (s *serverSocket) To(room ...Room) *BroadcastOperator {
	return s.Broadcast().To(room...)
}

func (s *serverSocket) In(room ...Room) *BroadcastOperator {
	return s.To(room...)
}

func (s *serverSocket) Except(room ...Room) *BroadcastOperator {
	return s.Broadcast().Except(room...)
}

func (s *serverSocket) Broadcast() *BroadcastOperator {
	return s.nsp.operator().exceptSID(s.id)
}

func (s *serverSocket) Local() *BroadcastOperator {
	return s.Broadcast().Local()
}

func (s *serverSocket) Join(room ...Room) {
	s.nsp.adapter.AddAll(s.id, room)
}

func (s *serverSocket) Leave(room Room) {
	s.nsp.adapter.Delete(s.id, room)
}

func (s *serverSocket) Rooms() mapset.Set[Room] {
	rooms, ok := s.nsp.adapter.SocketRooms(s.id)
	if !ok {
		return mapset.NewSet[Room]()
	}
	return rooms
}

func (s *serverSocket) Use(f EventMiddlewareFunc) {
	if f == nil {
		panic("sio: Use: nil middleware")
	}
	s.middlewareMu.Lock()
	s.middleware = append(s.middleware, f)
	s.middlewareMu.Unlock()
}

func (s *serverSocket) onPacket(header *parser.PacketHeader, eventName string, decode parser.Decode) {
	switch header.Type {
	case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
		s.onEvent(header, eventName, decode)
	case parser.PacketTypeAck, parser.PacketTypeBinaryAck:
		s.onAck(header, decode)
	case parser.PacketTypeDisconnect:
		s.onClose(ReasonClientNamespaceDisconnect)
	case parser.PacketTypeError:
		s.onErrorPacket(decode)
	}
}

func (s *serverSocket) onEvent(header *parser.PacketHeader, eventName string, decode parser.Decode) {
	if err := s.callMiddlewares(eventName, decode); err != nil {
		s.client.sendErrorPacket(s.nsp.Name(), err.Error())
		s.onError(err)
		return
	}

	if !s.Connected() {
		return
	}

	handlers := s.eventHandlers.getAll(eventName)

	// One ack per packet id, no matter how many handlers run.
	var ackOnce sync.Once

	for _, handler := range handlers {
		s.callEventHandler(handler, header, decode, &ackOnce)
	}
}

func (s *serverSocket) callMiddlewares(eventName string, decode parser.Decode) error {
	s.middlewareMu.RLock()
	middleware := make([]EventMiddlewareFunc, len(s.middleware))
	copy(middleware, s.middleware)
	s.middlewareMu.RUnlock()

	if len(middleware) == 0 {
		return nil
	}

	values, err := decode()
	if err != nil {
		return wrapInternalError(err)
	}
	args := make([]any, len(values))
	for i := range values {
		args[i] = values[i].Elem().Interface()
	}

	for _, f := range middleware {
		if err := f(eventName, args); err != nil {
			return err
		}
	}
	return nil
}

func (s *serverSocket) callEventHandler(handler *eventHandler, header *parser.PacketHeader, decode parser.Decode, ackOnce *sync.Once) {
	inputTypes := handler.inputArgs
	ackRequested := handler.ackRequested()
	if ackRequested {
		inputTypes = inputTypes[:len(inputTypes)-1]
	}

	values, err := decode(inputTypes...)
	if err != nil {
		s.onError(wrapInternalError(err))
		return
	}
	if len(values) > len(inputTypes) {
		values = values[:len(inputTypes)]
	}

	for i, v := range values {
		if inputTypes[i].Kind() != reflect.Ptr {
			values[i] = v.Elem()
		}
	}

	if ackRequested {
		values = append(values, s.newAckFunc(handler.inputArgs[len(handler.inputArgs)-1], header.ID, ackOnce))
	}

	ret, err := handler.Call(values...)
	if err != nil {
		s.onError(err)
		return
	}

	// Handlers that did not take the ack callback can acknowledge via
	// their return values instead.
	if header.ID != nil && !ackRequested && len(ret) > 0 {
		ackOnce.Do(func() {
			s.sendAckPacket(*header.ID, ret)
		})
	}
}

// newAckFunc builds the single-shot acknowledgement callback injected
// as the trailing handler argument. Without a packet id the callback is
// a no-op.
func (s *serverSocket) newAckFunc(funcType reflect.Type, id *uint64, ackOnce *sync.Once) reflect.Value {
	return reflect.MakeFunc(funcType, func(args []reflect.Value) []reflect.Value {
		if id != nil {
			ackOnce.Do(func() {
				s.sendAckPacket(*id, args)
			})
		}
		results := make([]reflect.Value, funcType.NumOut())
		for i := range results {
			results[i] = reflect.Zero(funcType.Out(i))
		}
		return results
	})
}

func (s *serverSocket) onAck(header *parser.PacketHeader, decode parser.Decode) {
	if header.ID == nil {
		s.onError(wrapInternalError(fmt.Errorf("sio: header.ID is nil")))
		return
	}

	s.acksMu.Lock()
	ack, ok := s.acks[*header.ID]
	delete(s.acks, *header.ID)
	s.acksMu.Unlock()

	if !ok {
		// Duplicate or expired ack. Ignore.
		s.nsp.server.logger.V(1).Info("ack with unknown id", "id", *header.ID, "sid", s.id)
		return
	}

	values, err := decode(ack.inputArgs...)
	if err != nil {
		s.onError(wrapInternalError(err))
		return
	}
	if len(values) > len(ack.inputArgs) {
		values = values[:len(ack.inputArgs)]
	}

	for i, v := range values {
		if ack.inputArgs[i].Kind() != reflect.Ptr {
			values[i] = v.Elem()
		}
	}

	if err := ack.Call(values...); err != nil {
		s.onError(err)
	}
}

func (s *serverSocket) onErrorPacket(decode parser.Decode) {
	values, err := decode(reflect.TypeOf(""))
	if err != nil {
		s.onError(wrapInternalError(err))
		return
	}
	if len(values) == 1 {
		s.onError(fmt.Errorf("sio: %s", values[0].Elem().String()))
	}
}

func (s *serverSocket) sendAckPacket(id uint64, values []reflect.Value) {
	header := parser.PacketHeader{
		Type:      parser.PacketTypeAck,
		Namespace: s.nsp.Name(),
		ID:        &id,
	}

	data := make([]any, len(values))
	for i := range values {
		if values[i].CanInterface() {
			data[i] = values[i].Interface()
		}
	}
	s.sendPacket(BroadcastFlags{}, &header, &data)
}

func (s *serverSocket) sendPacket(flags BroadcastFlags, header *parser.PacketHeader, v any) {
	// Covers ack callbacks retained past the socket's lifetime.
	if !s.Connected() {
		return
	}

	buffers, err := s.client.encode(header, v)
	if err != nil {
		s.onError(wrapInternalError(err))
		return
	}
	s.client.sendBuffers(flags, buffers...)
}

func (s *serverSocket) onError(err error) {
	handlers := s.errorHandlers.getAll()
	if len(handlers) == 0 {
		s.nsp.server.logger.Error(err, "socket error", "sid", s.id)
		return
	}
	for _, f := range handlers {
		f(err)
	}
}

func (s *serverSocket) onClose(reason Reason) {
	s.closeOnce.Do(func() {
		// Fires while the socket is still connected and in its rooms.
		for _, f := range s.disconnectingHandlers.getAll() {
			f(reason)
		}

		s.nsp.adapter.DeleteAll(s.id)
		s.nsp.remove(s)
		s.client.remove(s)

		s.connectedMu.Lock()
		s.connected = false
		s.connectedMu.Unlock()

		for _, f := range s.disconnectHandlers.getAll() {
			f(reason)
		}
	})
}

func (s *serverSocket) Disconnect(close bool) {
	if !s.Connected() {
		return
	}

	if close {
		s.client.disconnectAll()
		s.client.close(ReasonForcedClose)
		return
	}

	header := parser.PacketHeader{
		Type:      parser.PacketTypeDisconnect,
		Namespace: s.nsp.Name(),
	}
	s.sendPacket(BroadcastFlags{}, &header, nil)
	s.onClose(ReasonServerNamespaceDisconnect)
}
