package sio

// Reserved event names are never deliverable over the wire as EVENT
// packets. Emitting one raises it on the local listener registry
// instead of producing a packet.
var reservedEvents = map[string]bool{
	"connect":        true,
	"connection":     true,
	"disconnect":     true,
	"disconnecting":  true,
	"error":          true,
	"newListener":    true,
	"removeListener": true,
}

func IsEventReserved(eventName string) bool {
	return reservedEvents[eventName]
}
