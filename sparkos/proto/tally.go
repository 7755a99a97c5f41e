package proto

import "unicode/utf8"

// MaxCellIDBytes bounds the cell identifier carried by MsgTallyIncrement.
const MaxCellIDBytes = 32

// TallyIncrementPayload encodes a MsgTallyIncrement payload.
//
// Payload is the UTF-8 cell id, no terminator.
func TallyIncrementPayload(id string) []byte {
	return []byte(id)
}

// DecodeTallyIncrementPayload returns the cell id. The id is not checked against any roster.
func DecodeTallyIncrementPayload(b []byte) (id string, ok bool) {
	if len(b) == 0 || len(b) > MaxCellIDBytes || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
