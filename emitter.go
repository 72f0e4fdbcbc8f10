package sio

// Emitter stages flags for a direct (non-broadcast) emission to a
// single socket. Modifiers return copies, like BroadcastOperator.
type Emitter struct {
	socket *serverSocket
	flags  BroadcastFlags
	binary bool
}

// Volatile drops the packet if the transport is not currently writable.
func (e Emitter) Volatile() Emitter {
	e.flags.Volatile = true
	return e
}

func (e Emitter) Compress(compress bool) Emitter {
	e.flags.Compress = compress
	return e
}

// Binary forces binary framing regardless of the payload content.
func (e Emitter) Binary(binary bool) Emitter {
	e.binary = binary
	return e
}

func (e Emitter) Emit(eventName string, v ...any) {
	e.socket.emit(eventName, e.flags, e.binary, v...)
}

// Send emits a "message" event.
func (e Emitter) Send(v ...any) {
	e.Emit("message", v...)
}
