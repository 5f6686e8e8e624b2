package controllers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studento/studyrooms_backend/internal/controllers"
	"github.com/studento/studyrooms_backend/internal/models"
	"github.com/studento/studyrooms_backend/internal/rooms"
)

// stubRoomService lets each test plug in just the calls it expects.
type stubRoomService struct {
	create             func(creator models.User, name, description string, maxParticipants int) (*models.Room, *rooms.MeetingDetails, error)
	joinByCredential   func(meetingID, password string, user models.User) (*rooms.JoinResult, error)
	joinByID           func(roomID string, user models.User) (*rooms.JoinResult, error)
	leave              func(roomID, userID string) (*models.Room, error)
	transferHost       func(roomID, requesterID, newHostID string) (*models.Room, error)
	regeneratePassword func(roomID, requesterID string) (*rooms.MeetingDetails, error)
	closeRoom          func(roomID, requesterID string) error
	deleteRoom         func(roomID, requesterID string) error
	get                func(roomID string) (*models.Room, error)
	listActive         func() ([]models.Room, error)
	listByCreator      func(userID string) ([]models.Room, error)
}

func (s *stubRoomService) Create(creator models.User, name, description string, maxParticipants int) (*models.Room, *rooms.MeetingDetails, error) {
	return s.create(creator, name, description, maxParticipants)
}
func (s *stubRoomService) JoinByCredential(meetingID, password string, user models.User) (*rooms.JoinResult, error) {
	return s.joinByCredential(meetingID, password, user)
}
func (s *stubRoomService) JoinByID(roomID string, user models.User) (*rooms.JoinResult, error) {
	return s.joinByID(roomID, user)
}
func (s *stubRoomService) Leave(roomID, userID string) (*models.Room, error) {
	return s.leave(roomID, userID)
}
func (s *stubRoomService) TransferHost(roomID, requesterID, newHostID string) (*models.Room, error) {
	return s.transferHost(roomID, requesterID, newHostID)
}
func (s *stubRoomService) RegeneratePassword(roomID, requesterID string) (*rooms.MeetingDetails, error) {
	return s.regeneratePassword(roomID, requesterID)
}
func (s *stubRoomService) Close(roomID, requesterID string) error {
	return s.closeRoom(roomID, requesterID)
}
func (s *stubRoomService) Delete(roomID, requesterID string) error {
	return s.deleteRoom(roomID, requesterID)
}
func (s *stubRoomService) Get(roomID string) (*models.Room, error) {
	return s.get(roomID)
}
func (s *stubRoomService) ListActive() ([]models.Room, error) {
	return s.listActive()
}
func (s *stubRoomService) ListByCreator(userID string) ([]models.Room, error) {
	return s.listByCreator(userID)
}

func newTestRouter(svc controllers.RoomService, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	})
	rc := &controllers.RoomController{Rooms: svc}
	r.POST("/rooms", rc.CreateRoom)
	r.GET("/rooms", rc.ListRooms)
	r.POST("/rooms/join", rc.JoinByCredential)
	r.GET("/rooms/:id", rc.GetRoom)
	r.POST("/rooms/:id/join", rc.JoinByID)
	r.POST("/rooms/:id/transfer-host", rc.TransferHost)
	r.DELETE("/rooms/:id", rc.DeleteRoom)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func sampleRoom(hostID string) *models.Room {
	r := &models.Room{
		ID:              "room-1",
		Name:            "calc crunch",
		MeetingID:       "XKCD1234",
		Password:        "042137",
		CreatedByID:     hostID,
		HostID:          hostID,
		MaxParticipants: 10,
		IsActive:        true,
	}
	r.AddParticipant(hostID, "Host", models.RoleHost, time.Now().UTC())
	return r
}

func TestCreateRoomReturnsOneTimeMeetingDetails(t *testing.T) {
	host := models.User{ID: "user-a", FullName: "Alice"}
	svc := &stubRoomService{
		create: func(creator models.User, name, description string, maxParticipants int) (*models.Room, *rooms.MeetingDetails, error) {
			assert.Equal(t, "user-a", creator.ID)
			assert.Equal(t, "calc crunch", name)
			room := sampleRoom(creator.ID)
			return room, &rooms.MeetingDetails{MeetingID: room.MeetingID, Password: room.Password}, nil
		},
	}
	r := newTestRouter(svc, host)

	w, out := doJSON(t, r, http.MethodPost, "/rooms", `{"name":"calc crunch"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, out["success"])
	details := out["meetingDetails"].(map[string]interface{})
	assert.Equal(t, "XKCD1234", details["meetingId"])
	assert.Equal(t, "042137", details["password"])
}

func TestCreateRoomEmptyName(t *testing.T) {
	r := newTestRouter(&stubRoomService{}, models.User{ID: "user-a"})
	w, out := doJSON(t, r, http.MethodPost, "/rooms", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, out["success"])
}

func TestJoinByCredentialErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unknown code", rooms.ErrRoomNotFound, http.StatusNotFound, "room not found"},
		{"wrong password", rooms.ErrBadCredential, http.StatusUnauthorized, "invalid meeting password"},
		{"capacity", rooms.ErrRoomFull, http.StatusBadRequest, "room is full"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubRoomService{
				joinByCredential: func(meetingID, password string, user models.User) (*rooms.JoinResult, error) {
					return nil, tc.err
				},
			}
			r := newTestRouter(svc, models.User{ID: "user-b", FullName: "Bob"})
			w, out := doJSON(t, r, http.MethodPost, "/rooms/join", `{"meetingId":"XKCD1234","password":"000000"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tc.message, out["message"])
		})
	}
}

func TestJoinByIDIdempotentMessage(t *testing.T) {
	room := sampleRoom("user-a")
	room.AddParticipant("user-b", "Bob", models.RoleParticipant, time.Now().UTC())
	svc := &stubRoomService{
		joinByID: func(roomID string, user models.User) (*rooms.JoinResult, error) {
			return &rooms.JoinResult{Room: room, AlreadyJoined: true}, nil
		},
	}
	r := newTestRouter(svc, models.User{ID: "user-b", FullName: "Bob"})

	w, out := doJSON(t, r, http.MethodPost, "/rooms/room-1/join", `{}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already in room", out["message"])
}

func TestGetRoomScrubsPasswordForNonHost(t *testing.T) {
	room := sampleRoom("user-a")
	room.AddParticipant("user-b", "Bob", models.RoleParticipant, time.Now().UTC())
	svc := &stubRoomService{
		get: func(roomID string) (*models.Room, error) { return room, nil },
	}

	r := newTestRouter(svc, models.User{ID: "user-b", FullName: "Bob"})
	w, out := doJSON(t, r, http.MethodGet, "/rooms/room-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]interface{})
	_, hasPassword := data["password"]
	assert.False(t, hasPassword, "non-host must not see the room password")
	assert.Equal(t, false, data["isHost"])
	assert.Equal(t, true, data["isParticipant"])

	r = newTestRouter(svc, models.User{ID: "user-a", FullName: "Alice"})
	_, out = doJSON(t, r, http.MethodGet, "/rooms/room-1", "")
	data = out["data"].(map[string]interface{})
	assert.Equal(t, "042137", data["password"])
	assert.Equal(t, true, data["isHost"])
}

func TestListRoomsOmitsSecrets(t *testing.T) {
	room := sampleRoom("user-a")
	room.Messages = append(room.Messages, models.RoomMessage{Content: "secret history"})
	svc := &stubRoomService{
		listActive: func() ([]models.Room, error) { return []models.Room{*room}, nil },
	}
	r := newTestRouter(svc, models.User{ID: "user-b"})

	w, out := doJSON(t, r, http.MethodGet, "/rooms", "")

	require.Equal(t, http.StatusOK, w.Code)
	list := out["data"].([]interface{})
	require.Len(t, list, 1)
	entry := list[0].(map[string]interface{})
	_, hasPassword := entry["password"]
	_, hasMessages := entry["messages"]
	assert.False(t, hasPassword)
	assert.False(t, hasMessages)
	assert.Equal(t, "XKCD1234", entry["meetingId"])
}

func TestTransferHostForbidden(t *testing.T) {
	svc := &stubRoomService{
		transferHost: func(roomID, requesterID, newHostID string) (*models.Room, error) {
			return nil, rooms.ErrForbidden
		},
	}
	r := newTestRouter(svc, models.User{ID: "user-b"})

	w, out := doJSON(t, r, http.MethodPost, "/rooms/room-1/transfer-host", `{"newHostId":"user-c"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, out["success"])
}

func TestMissingAuthContextRejectedNotPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &stubRoomService{
		get: func(roomID string) (*models.Room, error) { return sampleRoom("user-a"), nil },
	}
	rc := &controllers.RoomController{Rooms: svc}

	// No middleware ever set "user" on the context.
	r := gin.New()
	r.GET("/rooms/:id", rc.GetRoom)
	w, out := doJSON(t, r, http.MethodGet, "/rooms/room-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, out["success"])

	// A value of the wrong type must be rejected the same way.
	r = gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", "not-a-user-struct")
		c.Next()
	})
	r.GET("/rooms/:id", rc.GetRoom)
	w, out = doJSON(t, r, http.MethodGet, "/rooms/room-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, out["success"])
}

func TestDeleteRoomNotFound(t *testing.T) {
	svc := &stubRoomService{
		deleteRoom: func(roomID, requesterID string) error { return rooms.ErrRoomNotFound },
	}
	r := newTestRouter(svc, models.User{ID: "user-a"})

	w, _ := doJSON(t, r, http.MethodDelete, "/rooms/room-9", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
