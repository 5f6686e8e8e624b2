package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/studento/studyrooms_backend/internal/config"
	"github.com/studento/studyrooms_backend/internal/controllers"
	"github.com/studento/studyrooms_backend/internal/middleware"
	"github.com/studento/studyrooms_backend/internal/rooms"
	"github.com/studento/studyrooms_backend/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, rdb *redis.Client, cfg *config.Config, hub *ws.RoomHub, roomSvc *rooms.Service) {
	expiresMins, err := time.ParseDuration(cfg.JWTExpiresIn + "m")
	if err != nil || expiresMins == 0 {
		expiresMins = 60 * time.Minute
	}
	authCtrl := &controllers.AuthController{DB: db, JWTSecret: cfg.JWTSecret, ExpiresIn: expiresMins}
	roomCtrl := &controllers.RoomController{Rooms: roomSvc}

	// Public
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", authCtrl.Register)
		auth.POST("/login", authCtrl.Login)
	}

	// Protected
	authMW := middleware.AuthMiddleware(db, cfg.JWTSecret)
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/auth/me", authCtrl.Me)

		api.POST("/rooms", roomCtrl.CreateRoom)
		api.GET("/rooms", roomCtrl.ListRooms)
		api.GET("/rooms/my-rooms", roomCtrl.MyRooms)
		if rdb != nil {
			limit, window := joinRateSettings(cfg)
			api.POST("/rooms/join", middleware.RateLimit(rdb, limit, window), roomCtrl.JoinByCredential)
		} else {
			api.POST("/rooms/join", roomCtrl.JoinByCredential)
		}
		api.GET("/rooms/:id", roomCtrl.GetRoom)
		api.POST("/rooms/:id/join", roomCtrl.JoinByID)
		api.POST("/rooms/:id/leave", roomCtrl.LeaveRoom)
		api.POST("/rooms/:id/transfer-host", roomCtrl.TransferHost)
		api.POST("/rooms/:id/regenerate-password", roomCtrl.RegeneratePassword)
		api.POST("/rooms/:id/close", roomCtrl.CloseRoom)
		api.DELETE("/rooms/:id", roomCtrl.DeleteRoom)

		api.GET("/ws", ws.Handler(hub))
	}
}

func joinRateSettings(cfg *config.Config) (int, time.Duration) {
	limit, err := strconv.Atoi(cfg.JoinRateLimit)
	if err != nil || limit <= 0 {
		limit = 10
	}
	seconds, err := strconv.Atoi(cfg.JoinRateWindow)
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	return limit, time.Duration(seconds) * time.Second
}
