package ws

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/studento/studyrooms_backend/internal/models"
)

// RoomStore is the durable side the hub needs: membership checks at channel
// join time and chat persistence. *rooms.Service satisfies it.
type RoomStore interface {
	IsParticipant(roomID, userID string) (bool, error)
	AppendMessage(roomID, senderID, senderName, content string) (*models.RoomMessage, error)
}

// Session is one live connection attached to the hub. The websocket client
// implements it; tests substitute their own.
type Session interface {
	UserID() string
	UserName() string
	// Enqueue hands an already-encoded frame to the session's writer without
	// blocking. It reports false when the session cannot keep up.
	Enqueue(payload []byte) bool
	// Close tears the underlying transport down.
	Close()
}

// presence is the transient hub-side record of a connected session. It is
// deliberately decoupled from the durable participant list: a disconnect
// drops presence but never mutates membership.
type presence struct {
	roomID string
}

type inbound struct {
	sess  Session
	event Event
}

// RoomHub relays presence, chat and whiteboard events between the live
// connections of each room. All state is owned by the single Run goroutine,
// which also gives every room channel FIFO delivery.
type RoomHub struct {
	register   chan Session
	unregister chan Session
	inbound    chan inbound

	sessions map[Session]*presence
	rooms    map[string]map[Session]struct{}

	store RoomStore
}

func NewRoomHub(store RoomStore) *RoomHub {
	return &RoomHub{
		register:   make(chan Session),
		unregister: make(chan Session),
		inbound:    make(chan inbound, 256),
		sessions:   make(map[Session]*presence),
		rooms:      make(map[string]map[Session]struct{}),
		store:      store,
	}
}

func (h *RoomHub) Run() {
	for {
		select {
		case sess := <-h.register:
			h.sessions[sess] = &presence{}
		case sess := <-h.unregister:
			h.dropSession(sess, true)
		case in := <-h.inbound:
			h.dispatch(in.sess, in.event)
		}
	}
}

// Attach registers a freshly upgraded connection. The connection belongs to
// no room channel until it sends join-room.
func (h *RoomHub) Attach(sess Session) {
	h.register <- sess
}

// Detach is called by a session's read pump on transport close.
func (h *RoomHub) Detach(sess Session) {
	h.unregister <- sess
}

// Deliver queues an inbound event for the hub loop.
func (h *RoomHub) Deliver(sess Session, event Event) {
	h.inbound <- inbound{sess: sess, event: event}
}

func (h *RoomHub) dispatch(sess Session, event Event) {
	p, ok := h.sessions[sess]
	if !ok {
		return
	}
	switch event.Event {
	case EventJoinRoom:
		var data joinRoomData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.RoomID == "" {
			h.sendError(sess, "join-room requires roomId")
			return
		}
		h.joinRoom(sess, p, data.RoomID)
	case EventLeaveRoom:
		h.leaveRoom(sess, p, true)
	case EventSendMessage:
		var data sendMessageData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			h.sendError(sess, "malformed send-message payload")
			return
		}
		h.sendMessage(sess, p, data)
	case EventDraw, EventClearCanvas:
		h.relay(sess, p, event)
	default:
		log.Printf("hub: unknown event %q from %s", event.Event, sess.UserID())
	}
}

func (h *RoomHub) joinRoom(sess Session, p *presence, roomID string) {
	member, err := h.store.IsParticipant(roomID, sess.UserID())
	if err != nil {
		log.Printf("hub: membership check failed for room %s: %v", roomID, err)
		h.sendError(sess, "could not verify room membership")
		return
	}
	if !member {
		h.sendError(sess, "you are not a participant of this room")
		return
	}

	// One room channel per connection; switching rooms leaves the old one.
	if p.roomID != "" && p.roomID != roomID {
		h.leaveRoom(sess, p, true)
	}
	if p.roomID == roomID {
		return
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[Session]struct{})
	}
	h.rooms[roomID][sess] = struct{}{}
	p.roomID = roomID

	h.broadcast(roomID, encodeEvent(EventUserJoined, PresenceData{
		UserID:   sess.UserID(),
		UserName: sess.UserName(),
		Message:  fmt.Sprintf("%s joined the room", sess.UserName()),
	}), sess)
}

func (h *RoomHub) leaveRoom(sess Session, p *presence, announce bool) {
	if p.roomID == "" {
		return
	}
	roomID := p.roomID
	p.roomID = ""
	if channel, ok := h.rooms[roomID]; ok {
		delete(channel, sess)
		if len(channel) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if announce {
		h.broadcast(roomID, encodeEvent(EventUserLeft, PresenceData{
			UserID:   sess.UserID(),
			UserName: sess.UserName(),
			Message:  fmt.Sprintf("%s left the room", sess.UserName()),
		}), sess)
	}
}

// sendMessage persists first, then fans out to the whole channel including
// the sender. A failed persist degrades to best-effort: the sender gets an
// error event but the connection stays up.
func (h *RoomHub) sendMessage(sess Session, p *presence, data sendMessageData) {
	if p.roomID == "" || (data.RoomID != "" && data.RoomID != p.roomID) {
		h.sendError(sess, "join a room before sending messages")
		return
	}
	msg, err := h.store.AppendMessage(p.roomID, sess.UserID(), sess.UserName(), data.Message)
	if err != nil {
		log.Printf("hub: failed to persist message in room %s: %v", p.roomID, err)
		h.sendError(sess, "message could not be saved")
		return
	}
	h.broadcast(p.roomID, encodeEvent(EventNewMessage, NewMessageData{
		Sender:    MessageSender{ID: msg.SenderID, Name: msg.SenderName},
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}), nil)
}

// relay forwards draw/clear-canvas frames verbatim to everyone else in the
// sender's channel. Nothing is persisted: late joiners start from a blank
// canvas.
func (h *RoomHub) relay(sess Session, p *presence, event Event) {
	if p.roomID == "" {
		h.sendError(sess, "join a room before drawing")
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast(p.roomID, payload, sess)
}

// broadcast delivers payload to every session in the room channel, excluding
// skip when non-nil. Sessions that cannot keep up are dropped.
func (h *RoomHub) broadcast(roomID string, payload []byte, skip Session) {
	if payload == nil {
		return
	}
	channel, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for sess := range channel {
		if sess == skip {
			continue
		}
		if !sess.Enqueue(payload) {
			log.Printf("hub: dropping slow session %s in room %s", sess.UserID(), roomID)
			h.dropSession(sess, false)
		}
	}
}

// dropSession removes all hub state for a session. When announce is set and
// the session was attached to a room, a synthesized user-left goes to the
// channel. Durable membership is never touched here.
func (h *RoomHub) dropSession(sess Session, announce bool) {
	p, ok := h.sessions[sess]
	if !ok {
		return
	}
	h.leaveRoom(sess, p, announce)
	delete(h.sessions, sess)
	sess.Close()
}

func (h *RoomHub) sendError(sess Session, msg string) {
	sess.Enqueue(encodeEvent(EventError, ErrorData{Message: msg}))
}
