package proto

// Kind identifies the message type carried in kernel.Message.Kind.
type Kind uint16

const (
	MsgLogLine Kind = iota + 1
	MsgTermInput
	MsgSerialSubscribe
	MsgSerialData
	MsgSerialWrite
	MsgTallyIncrement
	MsgTallyReset
	MsgClick
)

func (k Kind) String() string {
	switch k {
	case MsgLogLine:
		return "log_line"
	case MsgTermInput:
		return "term_input"
	case MsgSerialSubscribe:
		return "serial_subscribe"
	case MsgSerialData:
		return "serial_data"
	case MsgSerialWrite:
		return "serial_write"
	case MsgTallyIncrement:
		return "tally_increment"
	case MsgTallyReset:
		return "tally_reset"
	case MsgClick:
		return "click"
	default:
		return "unknown"
	}
}
