package protocol

import "github.com/gorilla/websocket"

// HandleMessage returns the reply for one inbound frame. Only text frames
// are answered.
func HandleMessage(messageType int, raw []byte) (string, bool) {
	if messageType != websocket.TextMessage {
		return "", false
	}
	return Echo(string(raw)), true
}
