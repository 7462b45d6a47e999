package meshmsg

import (
	"errors"
	"fmt"
)

// Opcode is an access-layer opcode. One-octet opcodes are stored as is,
// two-octet opcodes as 0x80xx-0xbfxx and three-octet vendor opcodes as
// 0xc0xxxx-0xffxxxx (opcode octet followed by the company id).
type Opcode uint32

// Known opcodes.
const (
	OpConfigCompositionDataGet    Opcode = 0x8008
	OpConfigCompositionDataStatus Opcode = 0x02
	OpHealthAttentionGet          Opcode = 0x8004
	OpHealthAttentionSet          Opcode = 0x8005
	OpHealthAttentionSetUnack     Opcode = 0x8006
	OpHealthAttentionStatus       Opcode = 0x8007
)

// CompositionPageAll asks for the highest composition page the node has.
const CompositionPageAll byte = 0xff

var opcodeNames = map[Opcode]string{
	OpConfigCompositionDataGet:    "ConfigCompositionDataGet",
	OpConfigCompositionDataStatus: "ConfigCompositionDataStatus",
	OpHealthAttentionGet:          "HealthAttentionGet",
	OpHealthAttentionSet:          "HealthAttentionSet",
	OpHealthAttentionSetUnack:     "HealthAttentionSetUnacknowledged",
	OpHealthAttentionStatus:       "HealthAttentionStatus",
}

// Errors returned by ParseOpcode.
var (
	ErrEmptyPayload    = errors.New("meshmsg: empty payload")
	ErrTruncatedOpcode = errors.New("meshmsg: truncated opcode")
	ErrReservedOpcode  = errors.New("meshmsg: reserved opcode 0x7f")
)

// Len returns the encoded length of the opcode in octets.
func (o Opcode) Len() int {
	switch {
	case o < 0x80:
		return 1
	case o <= 0xffff:
		return 2
	default:
		return 3
	}
}

// String returns the operation name, or the hex opcode when unknown.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	switch o.Len() {
	case 1:
		return fmt.Sprintf("0x%02x", uint32(o))
	case 2:
		return fmt.Sprintf("0x%04x", uint32(o))
	default:
		return fmt.Sprintf("0x%06x", uint32(o))
	}
}

// AppendOpcode appends the big-endian encoding of o to b.
func AppendOpcode(b []byte, o Opcode) []byte {
	switch o.Len() {
	case 1:
		return append(b, byte(o))
	case 2:
		return append(b, byte(o>>8), byte(o))
	default:
		return append(b, byte(o>>16), byte(o>>8), byte(o))
	}
}

// ParseOpcode splits payload into its opcode and parameters. The returned
// parameters alias payload.
func ParseOpcode(payload []byte) (Opcode, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, ErrEmptyPayload
	}
	first := payload[0]
	switch {
	case first == 0x7f:
		return 0, nil, ErrReservedOpcode
	case first&0x80 == 0:
		return Opcode(first), payload[1:], nil
	case first&0xc0 == 0x80:
		if len(payload) < 2 {
			return 0, nil, ErrTruncatedOpcode
		}
		return Opcode(uint32(first)<<8 | uint32(payload[1])), payload[2:], nil
	default:
		if len(payload) < 3 {
			return 0, nil, ErrTruncatedOpcode
		}
		return Opcode(uint32(first)<<16 | uint32(payload[1])<<8 | uint32(payload[2])), payload[3:], nil
	}
}
