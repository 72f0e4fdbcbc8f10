package parser

import "fmt"

var errInvalidPacketType = fmt.Errorf("parser: invalid packet type")

type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck

	packetTypeMax = PacketTypeBinaryAck
)

func (p PacketType) ToChar() byte {
	return byte(p) + '0'
}

func (p *PacketType) FromChar(b byte) error {
	if b < '0' || b > byte('0')+byte(packetTypeMax) {
		return errInvalidPacketType
	}
	*p = PacketType(b - '0')
	return nil
}

type PacketHeader struct {
	Type        PacketType
	Namespace   string
	ID          *uint64
	Attachments int

	// Plain suppresses the structural binary scan: the payload is
	// framed as text even when it contains binary values.
	Plain bool
}

func (p *PacketHeader) IsBinary() bool {
	return p.Type == PacketTypeBinaryEvent || p.Type == PacketTypeBinaryAck
}

func (p *PacketHeader) IsEvent() bool {
	return p.Type == PacketTypeEvent || p.Type == PacketTypeBinaryEvent
}

func (p *PacketHeader) IsAck() bool {
	return p.Type == PacketTypeAck || p.Type == PacketTypeBinaryAck
}
