package main

import (
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/mindpex/sanctum/auth"
	"github.com/mindpex/sanctum/config"
	"github.com/mindpex/sanctum/pkg/log"
	"github.com/mindpex/sanctum/pkg/token"
	"github.com/mindpex/sanctum/reply"
	"github.com/mindpex/sanctum/reply/gemini"
	"github.com/mindpex/sanctum/server"
	"github.com/mindpex/sanctum/stores"
)

// sessionRetentionDays is how long old day markers linger before the
// nightly sweep removes them.
const sessionRetentionDays = 30

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load .env file if it exists (not present in production)
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env")
	}

	if err := config.Load(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	conf := config.Conf

	log.Init(conf.Log.Level, conf.Log.Format, conf.Log.OutputPath)
	defer log.Sync()

	if conf.JWT.Secret == "" {
		log.Fatalf("jwt.secret is required")
	}

	// Conversation log store.
	store, err := stores.NewStore(stores.NewStoreConfig(conf.Store.Type, conf.Store.Connection))
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer store.Close()

	// Users database; account data lives apart from conversation logs.
	db, err := auth.OpenDatabase(conf.Store.Type, usersConnection(conf.Store))
	if err != nil {
		log.Fatalf("Failed to open users database: %v", err)
	}
	repo, err := auth.NewUserRepository(db)
	if err != nil {
		log.Fatalf("Failed to prepare users table: %v", err)
	}

	jwtManager := token.NewJWTManager(conf.JWT.Secret, conf.JWT.ExpireDays)
	authHandler := auth.NewHandler(auth.NewService(repo, jwtManager))
	authMW := auth.NewMiddleware(jwtManager)

	chatHandler := server.NewChatHandler(store, buildReplyClient(conf.Reply))

	// Nightly sweep: session markers only matter for the current day.
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@daily", func() {
		cutoff := time.Now().AddDate(0, 0, -sessionRetentionDays)
		pruned, err := store.PruneSessions(cutoff)
		if err != nil {
			log.Warnf("Session marker sweep failed: %v", err)
			return
		}
		if pruned > 0 {
			log.Infof("Pruned %d stale session markers", pruned)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule session sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := server.NewRouter(conf.Server.Mode, authHandler, authMW, chatHandler)
	log.Infof("Sanctum server listening on :%s", conf.Server.Port)
	if err := router.Run(":" + conf.Server.Port); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

// buildReplyClient picks the reply backend from configuration.
func buildReplyClient(conf config.ReplyConfig) reply.Client {
	if conf.Provider == "gemini" {
		return gemini.NewClient(conf.GeminiModel)
	}
	return reply.NewHTTPClient(conf.PrimaryURL, conf.FallbackURL)
}

// usersConnection derives the users database location from the store
// settings: SQLite gets a sibling file, Postgres shares the DSN.
func usersConnection(conf config.StoreConfig) string {
	if conf.Type == "sqlite" {
		return "sanctum_users.sqlite"
	}
	return conf.Connection
}
