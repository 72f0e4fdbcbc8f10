package parser

import "reflect"

type (
	Creator func() Parser

	// Finish is called once a whole packet, including all of its
	// binary attachments, has been reconstructed.
	Finish func(header *PacketHeader, eventName string, decode Decode)

	// Decode materializes the payload of a finished packet into
	// values of the requested types. A nil type decodes into *any.
	// Calling with no types on an event or ack packet decodes every
	// argument of the packet as any.
	Decode func(types ...reflect.Type) (values []reflect.Value, err error)
)

// Parser is the wire codec seam. Encode produces the ordered list of
// frames to write for one packet; Add consumes one inbound frame and
// calls finish when a whole packet is available. Reset drops any
// partially reconstructed state.
//
// Encode must be safe for concurrent use and must not touch the
// reconstruction state: handlers invoked from finish are allowed to
// encode outgoing packets on the same parser.
type Parser interface {
	Encode(header *PacketHeader, v any) (frames [][]byte, err error)
	Add(data []byte, finish Finish) error
	Reset()
}
