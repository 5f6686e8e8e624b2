package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/studento/studyrooms_backend/internal/config"
	"github.com/studento/studyrooms_backend/internal/database"
	"github.com/studento/studyrooms_backend/internal/rooms"
	"github.com/studento/studyrooms_backend/internal/routes"
	"github.com/studento/studyrooms_backend/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	roomSvc := rooms.NewService(db)

	hub := ws.NewRoomHub(roomSvc)
	go hub.Run()

	r := gin.Default()
	routes.Register(r, db, rdb, cfg, hub, roomSvc)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
