// Command server wires every collaborator package into one process and
// serves the HTTP/WS surface of spec.md §6, grounded on
// chat-service/cmd/server/main.go's construction order and graceful
// shutdown (minus its gRPC/grpc-gateway stack — see DESIGN.md).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/authz"
	"github.com/shopmindai/chatcore/internal/broker"
	"github.com/shopmindai/chatcore/internal/cache"
	"github.com/shopmindai/chatcore/internal/config"
	"github.com/shopmindai/chatcore/internal/dispatch"
	"github.com/shopmindai/chatcore/internal/events"
	"github.com/shopmindai/chatcore/internal/httpapi"
	"github.com/shopmindai/chatcore/internal/logging"
	"github.com/shopmindai/chatcore/internal/objectstore"
	"github.com/shopmindai/chatcore/internal/realtime"
	"github.com/shopmindai/chatcore/internal/store"
)

func main() {
	logger := logging.New()
	log := logger.WithField("component", "main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.Open(cfg.DBDSN, log)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	// The broker needs the registry's local-fallback closure, and the
	// registry needs the broker; reg is assigned before the fallback is ever
	// invoked (no publish happens during construction), breaking the cycle.
	var reg *realtime.Registry
	brk := broker.New(redisClient, log, func(channel string, payload []byte) {
		reg.DispatchFallback(channel, payload)
	})
	reg = realtime.NewRegistry(brk, log)

	az := authz.New(st)
	presence := realtime.NewPresence(st, reg, log)
	ev := events.New(cfg.KafkaBrokers, log)
	defer ev.Close()

	signer, err := authn.NewSigner(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		log.Fatalf("failed to initialize token signer: %v", err)
	}

	disp := dispatch.New(st, az, reg, ev, log)
	cacheManager := cache.New(redisClient, log)

	objCfg := objectstore.Config{
		Endpoint:  cfg.ObjectStoreEndpoint,
		PublicURL: cfg.ObjectStorePublicURL,
		AccessKey: cfg.ObjectStoreAccessKey,
		SecretKey: cfg.ObjectStoreSecretKey,
		Bucket:    cfg.ObjectStoreBucket,
		TTL:       cfg.ObjectStorePresignTTL,
	}

	h := &httpapi.Handlers{
		Store:         st,
		Authz:         az,
		Dispatch:      disp,
		Registry:      reg,
		Presence:      presence,
		Signer:        signer,
		Cache:         cacheManager,
		ObjStore:      objCfg,
		MaxFileSizeMB: cfg.MaxFileSizeMB,
		Log:           log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(h, log)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.APIPort),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Infof("starting HTTP server on port %d", cfg.APIPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("server stopped")
}
