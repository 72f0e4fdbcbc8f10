package sio

func (s *serverSocket) OnEvent(eventName string, handler any) {
	if IsEventReserved(eventName) {
		panic("sio: OnEvent: attempted to register a reserved event: `" + eventName + "`")
	}
	s.eventHandlers.on(eventName, newEventHandler(handler))
}

func (s *serverSocket) OnceEvent(eventName string, handler any) {
	if IsEventReserved(eventName) {
		panic("sio: OnceEvent: attempted to register a reserved event: `" + eventName + "`")
	}
	s.eventHandlers.once(eventName, newEventHandler(handler))
}

func (s *serverSocket) OffEvent(eventName string, handler ...any) {
	s.eventHandlers.off(eventName, handler...)
}

func (s *serverSocket) OffAll() {
	s.eventHandlers.offAll()
	s.errorHandlers.offAll()
	s.disconnectingHandlers.offAll()
	s.disconnectHandlers.offAll()
}

func (s *serverSocket) OnError(f SocketErrorFunc) {
	s.errorHandlers.on(f)
}

func (s *serverSocket) OnceError(f SocketErrorFunc) {
	s.errorHandlers.once(f)
}

func (s *serverSocket) OffError(f ...SocketErrorFunc) {
	s.errorHandlers.off(f...)
}

func (s *serverSocket) OnDisconnecting(f SocketDisconnectingFunc) {
	s.disconnectingHandlers.on(f)
}

func (s *serverSocket) OnceDisconnecting(f SocketDisconnectingFunc) {
	s.disconnectingHandlers.once(f)
}

func (s *serverSocket) OffDisconnecting(f ...SocketDisconnectingFunc) {
	s.disconnectingHandlers.off(f...)
}

func (s *serverSocket) OnDisconnect(f SocketDisconnectFunc) {
	s.disconnectHandlers.on(f)
}

func (s *serverSocket) OnceDisconnect(f SocketDisconnectFunc) {
	s.disconnectHandlers.once(f)
}

func (s *serverSocket) OffDisconnect(f ...SocketDisconnectFunc) {
	s.disconnectHandlers.off(f...)
}
