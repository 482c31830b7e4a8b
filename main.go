package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"skillsync/internal/api"
	"skillsync/internal/auth"
	"skillsync/internal/config"
	"skillsync/internal/events"
	"skillsync/internal/objectstore"
	"skillsync/internal/redis"
	"skillsync/internal/service/extract"
	"skillsync/internal/service/resume"
	"skillsync/internal/service/skills"
	"skillsync/internal/service/users"
	"skillsync/internal/storage"
	"skillsync/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfgPath := os.Getenv("SKILLSYNC_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("SKILLSYNC_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, user_tokens, resumes
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, continuing without token cache: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenTTL := time.Duration(cfg.BasicConfig.TokenTTL) * time.Hour
	authService := auth.NewService(db, dbType, rdb, tokenTTL)
	usersService := users.NewService(db, dbType)

	store, err := objectstore.New(ctx, cfg.ObjectStorage)
	if err != nil {
		log.Fatalf("init object storage: %v", err)
	}
	textExtractor, err := extract.New(ctx)
	if err != nil {
		log.Fatalf("init text extractor: %v", err)
	}
	chatModel, err := skills.NewChatModel(ctx, cfg)
	if err != nil {
		// Uploads still succeed with an empty skill list.
		log.Printf("skill extraction disabled: %v", err)
	}
	var gen skills.Generator
	if chatModel != nil {
		gen = chatModel
	}
	skillClient := skills.New(gen, cfg.SkillExtraction)

	publisher, err := events.New(cfg.Events, rdb)
	if err != nil {
		log.Fatalf("init event publisher: %v", err)
	}
	defer publisher.Close()

	uploadDir, err := filepath.Abs(cfg.BasicConfig.UploadDir)
	if err != nil {
		log.Fatalf("resolve upload dir: %v", err)
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatalf("create upload dir: %v", err)
	}
	gate := upload.NewGate(upload.NewPolicy(cfg.Upload), uploadDir)
	sweepInterval := time.Duration(cfg.BasicConfig.SweepInterval) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = upload.DefaultSweepInterval
	}
	stagingTTL := time.Duration(cfg.BasicConfig.StagingTTL) * time.Minute
	if stagingTTL <= 0 {
		stagingTTL = upload.DefaultStagingTTL
	}
	gate.StartSweeper(ctx, sweepInterval, stagingTTL)

	resumeService := resume.NewService(
		storage.NewResumeStore(db, dbType),
		store,
		textExtractor,
		skillClient,
		publisher,
	)
	handlers := api.NewHandler(usersService, authService, resumeService, gate)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
