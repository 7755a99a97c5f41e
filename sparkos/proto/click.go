package proto

import "encoding/binary"

// ClickPayload encodes a MsgClick request.
//
// Layout:
//   - u16: tone frequency in Hz
//   - u16: duration in milliseconds
func ClickPayload(freqHz, durationMs uint16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], freqHz)
	binary.LittleEndian.PutUint16(buf[2:4], durationMs)
	return buf
}

func DecodeClickPayload(b []byte) (freqHz, durationMs uint16, ok bool) {
	if len(b) != 4 {
		return 0, 0, false
	}
	freqHz = binary.LittleEndian.Uint16(b[0:2])
	durationMs = binary.LittleEndian.Uint16(b[2:4])
	if freqHz == 0 || durationMs == 0 {
		return 0, 0, false
	}
	return freqHz, durationMs, true
}
