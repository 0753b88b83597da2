package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/UkralStul/discussion-forum/internal/auth"
	"github.com/UkralStul/discussion-forum/internal/config"
	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/forum"
	"github.com/UkralStul/discussion-forum/internal/httpapi"
	"github.com/UkralStul/discussion-forum/internal/live"
	"github.com/UkralStul/discussion-forum/internal/reaction"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/UkralStul/discussion-forum/internal/storage/cached"
	"github.com/UkralStul/discussion-forum/internal/storage/inmemory"
	"github.com/UkralStul/discussion-forum/internal/storage/postgres"
	"github.com/UkralStul/discussion-forum/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	storageType := flag.String("storage", "", "Storage type (in-memory, postgres or sqlite), overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *storageType != "" {
		cfg.Storage = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting server with %s storage", cfg.Storage)
	store, closers, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Printf("close storage: %v", err)
			}
		}
	}()

	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(auth.StaticKey(cfg.SigningKey()), cfg.TokenTTL, nil)
	observer := live.NewObserver()
	svc := forum.NewService(store, hasher, tokens, reaction.NewLedger(store), observer)

	if shouldSeed(cfg) {
		// Заполним данными для тестов
		fillWithMockData(ctx, svc)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(svc, auth.NewGuard(tokens), store, observer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("listening on http://localhost:%s/api", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed to start: %v", err)
	}
}

// openStorage выбирает хранилище и, если задан FORUM_REDIS_ADDR, оборачивает его кэшем.
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, []io.Closer, error) {
	var (
		store   storage.Storage
		closers []io.Closer
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		level, err := cfg.GormLogLevel()
		if err != nil {
			return nil, nil, err
		}
		pg, err := postgres.New(cfg.DatabaseURL, level)
		if err != nil {
			return nil, nil, err
		}
		store, closers = pg, append(closers, pg)
	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		lite, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, closers = lite, append(closers, lite)
	default:
		store = inmemory.New()
	}

	if cfg.RedisAddr != "" {
		client, err := cached.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		log.Printf("caching posts and replies in redis at %s", cfg.RedisAddr)
		store, closers = cached.New(store, client, cfg.CacheTTL), append(closers, client)
	}
	return store, closers, nil
}

// shouldSeed разрешает демо-данные только для in-memory: у демо-пользователей
// известные пароли, в постоянном хранилище они переживут перезапуск.
func shouldSeed(cfg config.Config) bool {
	if !cfg.Seed {
		return false
	}
	if cfg.Storage != config.StorageInMemory {
		log.Printf("WARNING: seed is ignored for %s storage, mock users have well-known passwords", cfg.Storage)
		return false
	}
	return true
}

func fillWithMockData(ctx context.Context, svc *forum.Service) {
	// 1. Регистрируем двух пользователей
	identities := make(map[string]domain.Identity, 2)
	for _, name := range []string{"alice", "bob"} {
		user, err := svc.Register(ctx, name, "password-"+name)
		if errors.Is(err, domain.ErrConflict) {
			log.Printf("fillWithMockData: user %s already exists, skipping mock data", name)
			return
		}
		if err != nil {
			log.Fatalf("fillWithMockData: failed to register %s: %v", name, err)
		}
		identities[name] = domain.Identity{UserID: user.ID}
	}
	if _, err := svc.Login(ctx, "alice", "password-alice"); err != nil {
		log.Fatalf("fillWithMockData: failed to login: %v", err)
	}

	// 2. Создаем пост и ответ на него
	post, err := svc.CreatePost(ctx, identities["alice"], "Welcome to the forum", "Introduce yourself in the replies.")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create post: %v", err)
	}
	reply, err := svc.CreateReply(ctx, identities["bob"], post.ID, "Hi, I'm Bob.")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create reply: %v", err)
	}

	// 3. Несколько реакций
	if _, err := svc.React(ctx, domain.TargetPost, post.ID, domain.ReactionLike); err != nil {
		log.Fatalf("fillWithMockData: failed to like post: %v", err)
	}
	if _, err := svc.React(ctx, domain.TargetReply, reply.ID, domain.ReactionLike); err != nil {
		log.Fatalf("fillWithMockData: failed to like reply: %v", err)
	}

	log.Printf("Mock data filled successfully. Created post ID: %s, reply ID: %s", post.ID, reply.ID)
}
