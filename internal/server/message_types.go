package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages
	MessageTypeAuth   MessageType = "auth"
	MessageTypeAction MessageType = "action"
	MessageTypeState  MessageType = "state"
	MessageTypeList   MessageType = "list"

	// Server to client messages
	MessageTypeResult MessageType = "result"
	MessageTypeError  MessageType = "error"
	MessageTypeEvent  MessageType = "event"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
