package probe

import (
	"encoding/binary"

	"github.com/hamed0406/servicecheck/internal/domain"
)

// ClassifyResponse inspects the first bytes a peer returned after the handshake.
func ClassifyResponse(b []byte) domain.Response {
	r := domain.Response{Bytes: len(b)}
	switch {
	case len(b) == 0:
		r.Kind = domain.ResponseClosed
		return r
	case len(b) < 4:
		r.Kind = domain.ResponseShort
		return r
	}

	r.Header = binary.LittleEndian.Uint32(b)
	switch r.Header {
	case FrameMagic:
		r.Kind = domain.ResponseUnknown
		if len(b) >= 12 {
			switch binary.LittleEndian.Uint32(b[8:]) {
			case 1:
				r.Kind = domain.ResponseLoginAck
			case 2:
				r.Kind = domain.ResponseServerStatus
			case 3:
				r.Kind = domain.ResponseMaintenance
			}
		}
	case MaintenanceMagic:
		r.Kind = domain.ResponseMaintenanceNotice
	default:
		r.Kind = domain.ResponseUnknown
	}
	return r
}
