package ws

import (
	"encoding/json"
	"time"
)

// Wire protocol: JSON envelopes {"event": ..., "data": {...}}. Event names
// are additive-only; payloads carry no version field.
const (
	// client -> hub
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventDraw        = "draw"
	EventClearCanvas = "clear-canvas"

	// hub -> client
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventNewMessage = "new-message"
	EventError      = "error"
)

type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinRoomData struct {
	RoomID string `json:"roomId"`
}

type sendMessageData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type MessageSender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type NewMessageData struct {
	Sender    MessageSender `json:"sender"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

type PresenceData struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

type ErrorData struct {
	Message string `json:"message"`
}

func encodeEvent(name string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	payload, err := json.Marshal(Event{Event: name, Data: raw})
	if err != nil {
		return nil
	}
	return payload
}
