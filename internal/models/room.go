package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleHost        = "host"
	RoleCoHost      = "co-host"
	RoleParticipant = "participant"

	DefaultMaxParticipants = 10
)

// RoomSettings holds per-room feature toggles. They are stored and returned
// to clients but not enforced by the relay.
type RoomSettings struct {
	AllowChat       bool
	AllowWhiteboard bool
	MuteOnJoin      bool
}

// Room is the durable study-room aggregate: membership, credentials and chat
// history. HostID always matches the single participant entry with RoleHost
// while the room is active.
type Room struct {
	ID              string       `gorm:"type:uuid;primaryKey"`
	Name            string
	Description     string
	MeetingID       string       `gorm:"uniqueIndex"`
	Password        string
	CreatedByID     string       `gorm:"type:uuid;index"`
	HostID          string       `gorm:"type:uuid"`
	MaxParticipants int
	IsActive        bool
	ClosedAt        *time.Time
	Settings        RoomSettings `gorm:"embedded;embeddedPrefix:setting_"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
	Messages     []RoomMessage     `gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type RoomParticipant struct {
	ID       uint   `gorm:"primaryKey"`
	RoomID   string `gorm:"type:uuid;index;uniqueIndex:idx_room_user"`
	UserID   string `gorm:"type:uuid;uniqueIndex:idx_room_user"`
	UserName string
	Role     string
	JoinedAt time.Time
}

// RoomMessage is one entry of the append-only chat log. Rows are never
// updated or deleted individually; they go away only with the room.
type RoomMessage struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     string `gorm:"type:uuid;index"`
	SenderID   string `gorm:"type:uuid"`
	SenderName string
	Content    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// ParticipantEntry returns the participant record for userID, or nil.
func (r *Room) ParticipantEntry(userID string) *RoomParticipant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

func (r *Room) IsParticipant(userID string) bool {
	return r.ParticipantEntry(userID) != nil
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.MaxParticipants
}

// HostEntry returns the participant entry holding the host role, or nil.
func (r *Room) HostEntry() *RoomParticipant {
	for i := range r.Participants {
		if r.Participants[i].Role == RoleHost {
			return &r.Participants[i]
		}
	}
	return nil
}

// AddParticipant appends a new entry. It is the caller's job to check
// capacity first; AddParticipant itself only guards against duplicates and
// reports whether anything changed.
func (r *Room) AddParticipant(userID, userName, role string, now time.Time) bool {
	if r.IsParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, RoomParticipant{
		RoomID:   r.ID,
		UserID:   userID,
		UserName: userName,
		Role:     role,
		JoinedAt: now,
	})
	if role == RoleHost {
		r.HostID = userID
	}
	return true
}

// RemoveParticipant drops userID from the membership list. When the departing
// user held the host role and others remain, the earliest-joined remaining
// participant is promoted so the room never loses its single host. When the
// room empties out it is closed. Returns whether the user was a member.
func (r *Room) RemoveParticipant(userID string, now time.Time) bool {
	idx := -1
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	wasHost := r.Participants[idx].Role == RoleHost
	r.Participants = append(r.Participants[:idx], r.Participants[idx+1:]...)

	if len(r.Participants) == 0 {
		r.Close(now)
		return true
	}
	if wasHost {
		next := r.earliestJoined()
		next.Role = RoleHost
		r.HostID = next.UserID
	}
	return true
}

// TransferHost flips the current host entry to a plain participant and
// promotes newHostID. Returns false when newHostID is not a member.
func (r *Room) TransferHost(newHostID string) bool {
	target := r.ParticipantEntry(newHostID)
	if target == nil {
		return false
	}
	if cur := r.HostEntry(); cur != nil {
		cur.Role = RoleParticipant
	}
	target.Role = RoleHost
	r.HostID = newHostID
	return true
}

// Close soft-closes the room. ClosedAt is write-once: closing an already
// closed room keeps the original timestamp.
func (r *Room) Close(now time.Time) {
	if !r.IsActive && r.ClosedAt != nil {
		return
	}
	r.IsActive = false
	if r.ClosedAt == nil {
		r.ClosedAt = &now
	}
}

func (r *Room) earliestJoined() *RoomParticipant {
	best := &r.Participants[0]
	for i := 1; i < len(r.Participants); i++ {
		if r.Participants[i].JoinedAt.Before(best.JoinedAt) {
			best = &r.Participants[i]
		}
	}
	return best
}
