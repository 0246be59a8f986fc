package control

// MessageType discriminates the three kinds sharing the control channel.
type MessageType byte

const (
	MsgScreenshot MessageType = 1
	MsgState      MessageType = 2
	MsgMapImage   MessageType = 3
)

// Frame is one parsed control-channel message:
//
//	byte 0       message type
//	byte 1       sessionId length N
//	bytes 2..2+N sessionId (informational; the connection is already scoped)
//	rest         payload
type Frame struct {
	Type      MessageType
	SessionID string
	Payload   []byte
}

// ParseFrame decodes one control message. Messages shorter than 3 bytes or
// whose declared session id runs past the end are dropped (ok=false).
func ParseFrame(data []byte) (Frame, bool) {
	if len(data) < 3 {
		return Frame{}, false
	}
	n := int(data[1])
	start := 2 + n
	if start > len(data) {
		return Frame{}, false
	}
	return Frame{
		Type:      MessageType(data[0]),
		SessionID: string(data[2:start]),
		Payload:   data[start:],
	}, true
}
