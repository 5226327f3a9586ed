package probe

import (
	"encoding/binary"
	"time"
)

const (
	FrameMagic       uint32 = 0x41A05252
	FrameLength      uint32 = 28
	ConnTypeLogin    uint32 = 0x00000001
	ClientVersion    uint32 = 0x02024011
	MaintenanceMagic uint32 = 0x52A05241
)

// Frame is the synthetic handshake sent after connecting. It only needs to
// provoke some reply from the peer; it is not a protocol-correct login.
type Frame struct {
	Timestamp uint64
}

func NewFrame(now time.Time) Frame {
	return Frame{Timestamp: uint64(now.Unix())}
}

// Bytes encodes the frame little-endian:
// magic, length, connection type, client version, unix seconds (u64), checksum.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameLength)
	le := binary.LittleEndian
	le.PutUint32(b[0:], FrameMagic)
	le.PutUint32(b[4:], FrameLength)
	le.PutUint32(b[8:], ConnTypeLogin)
	le.PutUint32(b[12:], ClientVersion)
	le.PutUint64(b[16:], f.Timestamp)
	le.PutUint32(b[24:], Checksum(b[:24]))
	return b
}

// Checksum XORs every complete little-endian 32-bit word of b.
func Checksum(b []byte) uint32 {
	var sum uint32
	for i := 0; i+4 <= len(b); i += 4 {
		sum ^= binary.LittleEndian.Uint32(b[i:])
	}
	return sum
}
