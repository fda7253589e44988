package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
	"boardsync/gateway"
	"boardsync/storage"
	"boardsync/subscription"
)

// boardSource serves board snapshots straight from table storage and
// progress through the Redis cache.
type boardSource struct {
	*storage.Storage
	cache *storage.ProgressCache
}

func (s boardSource) FetchProgress(ctx context.Context, eventID string) (domain.ProgressSnapshot, error) {
	return s.cache.FetchProgress(ctx, eventID)
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	listsTableName := os.Getenv("LISTS_TABLE")
	tasksTableName := os.Getenv("TASKS_TABLE")
	participantsTableName := os.Getenv("PARTICIPANTS_TABLE")
	eventsQueueName := os.Getenv("DOMAIN_EVENTS_QUEUE")
	if connStr == "" || listsTableName == "" || tasksTableName == "" || participantsTableName == "" || eventsQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, listsTableName, tasksTableName, participantsTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	ttl := time.Minute
	if v := os.Getenv("PROGRESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid PROGRESS_TTL: %v", err)
		}
		ttl = d
	}
	cache := storage.NewProgressCache(store, rc, ttl)

	queue, err := storage.NewAzureQueue(connStr, eventsQueueName)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	ctx := context.Background()
	go storage.NewBridge(queue, rc).Run(ctx)

	var auth *gateway.Auth
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		secret := os.Getenv("TEST_JWT_SECRET")
		if secret == "" {
			log.Fatal("TEST_JWT_SECRET must be set when AUTH_TEST_MODE=1")
		}
		auth = gateway.NewTestAuth([]byte(secret))
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		authDomain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = gateway.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	hub := subscription.NewHub(ctx, rc)
	gateway.Register(e, boardSource{Storage: store, cache: cache}, hub, auth)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("BOARDSYNC_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
