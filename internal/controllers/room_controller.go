package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studento/studyrooms_backend/internal/models"
	"github.com/studento/studyrooms_backend/internal/rooms"
)

// RoomService is what the controller needs from the rooms package;
// *rooms.Service satisfies it.
type RoomService interface {
	Create(creator models.User, name, description string, maxParticipants int) (*models.Room, *rooms.MeetingDetails, error)
	JoinByCredential(meetingID, password string, user models.User) (*rooms.JoinResult, error)
	JoinByID(roomID string, user models.User) (*rooms.JoinResult, error)
	Leave(roomID, userID string) (*models.Room, error)
	TransferHost(roomID, requesterID, newHostID string) (*models.Room, error)
	RegeneratePassword(roomID, requesterID string) (*rooms.MeetingDetails, error)
	Close(roomID, requesterID string) error
	Delete(roomID, requesterID string) error
	Get(roomID string) (*models.Room, error)
	ListActive() ([]models.Room, error)
	ListByCreator(userID string) ([]models.Room, error)
}

type RoomController struct {
	Rooms RoomService
}

type createRoomRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"maxParticipants"`
}

type joinByCredentialRequest struct {
	MeetingID string `json:"meetingId" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type transferHostRequest struct {
	NewHostID string `json:"newHostId" binding:"required"`
}

// currentUser pulls the authenticated user that AuthMiddleware stored on the
// context. A missing or mistyped value aborts the request with 401 instead of
// panicking; callers just return when ok is false.
func currentUser(c *gin.Context) (models.User, bool) {
	uVal, ok := c.Get("user")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return models.User{}, false
	}
	user, ok := uVal.(models.User)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
	}
	return user, ok
}

func (rc *RoomController) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}
	room, details, err := rc.Rooms.Create(user, req.Name, req.Description, req.MaxParticipants)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"data":           roomDetail(room, user.ID),
		"meetingDetails": details,
	})
}

func (rc *RoomController) ListRooms(c *gin.Context) {
	list, err := rc.Rooms.ListActive()
	if err != nil {
		respondRoomError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, roomSummary(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (rc *RoomController) MyRooms(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := rc.Rooms.ListByCreator(user.ID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, roomSummary(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (rc *RoomController) JoinByCredential(c *gin.Context) {
	var req joinByCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := rc.Rooms.JoinByCredential(req.MeetingID, req.Password, user)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	respondJoin(c, res, user.ID)
}

func (rc *RoomController) JoinByID(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := rc.Rooms.JoinByID(roomIDParam(c), user)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	respondJoin(c, res, user.ID)
}

func (rc *RoomController) GetRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	room, err := rc.Rooms.Get(roomIDParam(c))
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": roomDetail(room, user.ID)})
}

func (rc *RoomController) LeaveRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if _, err := rc.Rooms.Leave(roomIDParam(c), user.ID); err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "left room"})
}

func (rc *RoomController) TransferHost(c *gin.Context) {
	var req transferHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}
	room, err := rc.Rooms.TransferHost(roomIDParam(c), user.ID, req.NewHostID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": roomDetail(room, user.ID)})
}

func (rc *RoomController) RegeneratePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	details, err := rc.Rooms.RegeneratePassword(roomIDParam(c), user.ID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meetingDetails": details})
}

func (rc *RoomController) CloseRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := rc.Rooms.Close(roomIDParam(c), user.ID); err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "room closed"})
}

func (rc *RoomController) DeleteRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := rc.Rooms.Delete(roomIDParam(c), user.ID); err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "room deleted"})
}

func roomIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

func respondJoin(c *gin.Context, res *rooms.JoinResult, requesterID string) {
	msg := "joined room"
	if res.AlreadyJoined {
		msg = "already in room"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msg,
		"data":    roomDetail(res.Room, requesterID),
	})
}

func respondRoomError(c *gin.Context, err error) {
	switch {
	case rooms.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, rooms.ErrBadCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, rooms.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, rooms.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, rooms.ErrRoomFull), errors.Is(err, rooms.ErrRoomClosed), errors.Is(err, rooms.ErrNotParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	default:
		log.Printf("rooms: unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "something went wrong"})
	}
}

// roomSummary is the listing shape: no password, no messages.
func roomSummary(r *models.Room) gin.H {
	return gin.H{
		"id":              r.ID,
		"name":            r.Name,
		"description":     r.Description,
		"meetingId":       r.MeetingID,
		"createdBy":       r.CreatedByID,
		"host":            r.HostID,
		"maxParticipants": r.MaxParticipants,
		"isActive":        r.IsActive,
		"closedAt":        r.ClosedAt,
		"participants":    participantList(r),
		"settings":        settings(r),
		"createdAt":       r.CreatedAt,
	}
}

// roomDetail adds requester flags, chat history, and the password when the
// requester currently holds the host role.
func roomDetail(r *models.Room, requesterID string) gin.H {
	out := roomSummary(r)
	out["isHost"] = r.HostID == requesterID
	out["isParticipant"] = r.IsParticipant(requesterID)
	if r.HostID == requesterID {
		out["password"] = r.Password
	}
	msgs := make([]gin.H, 0, len(r.Messages))
	for i := range r.Messages {
		m := &r.Messages[i]
		msgs = append(msgs, gin.H{
			"sender":    gin.H{"id": m.SenderID, "name": m.SenderName},
			"content":   m.Content,
			"timestamp": m.CreatedAt,
		})
	}
	out["messages"] = msgs
	return out
}

func participantList(r *models.Room) []gin.H {
	out := make([]gin.H, 0, len(r.Participants))
	for i := range r.Participants {
		p := &r.Participants[i]
		out = append(out, gin.H{
			"user":     gin.H{"id": p.UserID, "name": p.UserName},
			"role":     p.Role,
			"joinedAt": p.JoinedAt,
		})
	}
	return out
}

func settings(r *models.Room) gin.H {
	return gin.H{
		"allowChat":       r.Settings.AllowChat,
		"allowWhiteboard": r.Settings.AllowWhiteboard,
		"muteOnJoin":      r.Settings.MuteOnJoin,
	}
}
