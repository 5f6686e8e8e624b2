package rooms

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studento/studyrooms_backend/internal/models"
	"github.com/studento/studyrooms_backend/internal/utils"
)

// meeting id collisions are rare (33^8 space); a handful of retries against
// the unique index is plenty.
const meetingIDAttempts = 5

// Service owns room lifecycle and membership. Every mutation that depends on
// current membership runs inside a transaction holding a row lock on the
// room, so capacity checks and host handoffs cannot race.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// JoinResult is returned by both join paths.
type JoinResult struct {
	Room          *models.Room
	AlreadyJoined bool
}

// MeetingDetails is the one-time credentials payload handed to a room's
// creator.
type MeetingDetails struct {
	MeetingID string `json:"meetingId"`
	Password  string `json:"password"`
}

func (s *Service) Create(creator models.User, name, description string, maxParticipants int) (*models.Room, *MeetingDetails, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, validationErrorf("room name is required")
	}
	if maxParticipants <= 0 {
		maxParticipants = models.DefaultMaxParticipants
	}

	password, err := utils.GenerateRoomPassword()
	if err != nil {
		return nil, nil, err
	}

	var room models.Room
	for attempt := 0; attempt < meetingIDAttempts; attempt++ {
		meetingID, err := utils.GenerateMeetingID()
		if err != nil {
			return nil, nil, err
		}
		room = models.Room{
			Name:            name,
			Description:     strings.TrimSpace(description),
			MeetingID:       meetingID,
			Password:        password,
			CreatedByID:     creator.ID,
			HostID:          creator.ID,
			MaxParticipants: maxParticipants,
			IsActive:        true,
			Settings: models.RoomSettings{
				AllowChat:       true,
				AllowWhiteboard: true,
			},
		}
		room.AddParticipant(creator.ID, creator.FullName, models.RoleHost, time.Now().UTC())

		err = s.DB.Create(&room).Error
		if err == nil {
			return &room, &MeetingDetails{MeetingID: room.MeetingID, Password: room.Password}, nil
		}
		if !isUniqueViolation(err) {
			return nil, nil, err
		}
		// meeting id collided with an existing room; draw another
	}
	return nil, nil, errors.New("could not allocate a unique meeting id")
}

// JoinByCredential admits a user via the public meeting id + password pair.
// Lookup is case-insensitive on the meeting id and limited to active rooms.
func (s *Service) JoinByCredential(meetingID, password string, user models.User) (*JoinResult, error) {
	meetingID = strings.ToUpper(strings.TrimSpace(meetingID))
	if meetingID == "" || password == "" {
		return nil, validationErrorf("meeting id and password are required")
	}

	var res JoinResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("meeting_id = ? AND is_active = ?", meetingID, true).
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if !utils.PasswordsMatch(room.Password, password) {
			return ErrBadCredential
		}
		return s.admit(tx, &room, user, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// JoinByID admits a user to a listed room without a credential check.
func (s *Service) JoinByID(roomID string, user models.User) (*JoinResult, error) {
	var res JoinResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsActive {
			return ErrRoomNotFound
		}
		return s.admit(tx, room, user, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// admit runs the shared admission rules while the caller holds the room row
// lock: idempotent re-join, then capacity, then append.
func (s *Service) admit(tx *gorm.DB, room *models.Room, user models.User, res *JoinResult) error {
	if err := loadParticipants(tx, room); err != nil {
		return err
	}
	if room.IsParticipant(user.ID) {
		res.Room = room
		res.AlreadyJoined = true
		return nil
	}
	if room.IsFull() {
		return ErrRoomFull
	}
	entry := models.RoomParticipant{
		RoomID:   room.ID,
		UserID:   user.ID,
		UserName: user.FullName,
		Role:     models.RoleParticipant,
		JoinedAt: time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	room.Participants = append(room.Participants, entry)
	res.Room = room
	return nil
}

// Leave removes userID from the room. Host departure promotes the
// earliest-joined remaining participant; the last departure closes the room.
func (s *Service) Leave(roomID, userID string) (*models.Room, error) {
	var out *models.Room
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if err := loadParticipants(tx, room); err != nil {
			return err
		}
		entry := room.ParticipantEntry(userID)
		if entry == nil {
			return ErrNotParticipant
		}
		wasHost := entry.Role == models.RoleHost

		room.RemoveParticipant(userID, time.Now().UTC())

		if err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		if len(room.Participants) == 0 {
			if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
				Updates(map[string]interface{}{
					"is_active": false,
					"closed_at": room.ClosedAt,
				}).Error; err != nil {
				return err
			}
		} else if wasHost {
			promoted := room.HostEntry()
			if err := tx.Model(&models.RoomParticipant{}).Where("id = ?", promoted.ID).
				Update("role", models.RoleHost).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
				Update("host_id", promoted.UserID).Error; err != nil {
				return err
			}
		}
		out = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransferHost hands the host role to another current participant. Both role
// flips and the host pointer land in one transaction.
func (s *Service) TransferHost(roomID, requesterID, newHostID string) (*models.Room, error) {
	if strings.TrimSpace(newHostID) == "" {
		return nil, validationErrorf("new host id is required")
	}
	var out *models.Room
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsActive {
			return ErrRoomNotFound
		}
		if room.HostID != requesterID {
			return ErrForbidden
		}
		if err := loadParticipants(tx, room); err != nil {
			return err
		}
		if !room.IsParticipant(newHostID) {
			return validationErrorf("new host must already be a participant")
		}

		room.TransferHost(newHostID)

		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, requesterID).
			Update("role", models.RoleParticipant).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, newHostID).
			Update("role", models.RoleHost).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("host_id", newHostID).Error; err != nil {
			return err
		}
		out = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RegeneratePassword replaces the room password. Previously shared passwords
// stop working for new join attempts immediately; admitted participants are
// unaffected.
func (s *Service) RegeneratePassword(roomID, requesterID string) (*MeetingDetails, error) {
	var details *MeetingDetails
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsActive {
			return ErrRoomNotFound
		}
		if room.HostID != requesterID {
			return ErrForbidden
		}
		password, err := utils.GenerateRoomPassword()
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("password", password).Error; err != nil {
			return err
		}
		details = &MeetingDetails{MeetingID: room.MeetingID, Password: password}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// Close soft-closes the room: membership and chat history are retained.
func (s *Service) Close(roomID, requesterID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if room.HostID != requesterID {
			return ErrForbidden
		}
		if !room.IsActive {
			return nil // already closed; keep the original closed_at
		}
		room.Close(time.Now().UTC())
		return tx.Model(&models.Room{}).Where("id = ?", roomID).
			Updates(map[string]interface{}{
				"is_active": false,
				"closed_at": room.ClosedAt,
			}).Error
	})
}

// Delete purges the aggregate entirely, chat history included.
func (s *Service) Delete(roomID, requesterID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if requesterID != room.HostID && requesterID != room.CreatedByID {
			return ErrForbidden
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", roomID).Error
	})
}

// Get loads the full aggregate: participants ordered by join time and the
// chat log in append order.
func (s *Service) Get(roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListActive returns all open rooms with membership loaded (no messages).
func (s *Service) ListActive() ([]models.Room, error) {
	var out []models.Room
	err := s.DB.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ListByCreator returns every room the user created, open or closed.
func (s *Service) ListByCreator(userID string) ([]models.Room, error) {
	var out []models.Room
	err := s.DB.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Where("created_by_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// IsParticipant reports durable membership. The realtime hub checks this
// before attaching a connection to a room channel.
func (s *Service) IsParticipant(roomID, userID string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}

// AppendMessage persists one chat message. The hub calls this before fanning
// the message out, so a fetched room snapshot never shows a message a live
// client has not also received.
func (s *Service) AppendMessage(roomID, senderID, senderName, content string) (*models.RoomMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, validationErrorf("message content is required")
	}
	var room models.Room
	err := s.DB.Select("id", "is_active").Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomClosed
	}
	msg := models.RoomMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.DB.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func lockRoom(tx *gorm.DB, roomID string) (*models.Room, error) {
	var room models.Room
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func loadParticipants(tx *gorm.DB, room *models.Room) error {
	return tx.Where("room_id = ?", room.ID).
		Order("joined_at ASC").
		Find(&room.Participants).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
