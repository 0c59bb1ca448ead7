package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"richCollab/backend/config"
	"richCollab/backend/internal/auth"
	"richCollab/backend/internal/cache"
	"richCollab/backend/internal/collab"
	"richCollab/backend/internal/httpapi/handlers"
	"richCollab/backend/internal/httpapi/middleware"
	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/store"
	"richCollab/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: port=%d kafka=%v redis=%v", cfg.Running.Port, cfg.Kafka.Brokers, cfg.Redis.Addrs)
	if cfg.Collab.MaxDepth > 0 {
		apply.MaxDepth = cfg.Collab.MaxDepth
	}

	// 单地址时是普通客户端，多地址时是集群客户端
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	gdb, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer db.Close()
	if err := store.EnsureSnapshotSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to create snapshot table: %v", err)
	}

	// === 初始化 Kafka Producer ===
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	dcfg := cfg.Collab.Dispatcher
	kafkaDispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		collab.NewSemaphoreControl(cfg.Collab.Semaphore),
		collab.KafkaDispatcherOptions{
			QueueSize:   dcfg.QueueSize,
			Workers:     dcfg.Workers,
			MaxRetry:    dcfg.MaxRetry,
			BaseBackoff: dcfg.BaseBackoff,
			MaxBackoff:  dcfg.MaxBackoff,
		},
	)

	svc := collab.NewInMemoryService(
		store.NewSnapshotStore(db),
		store.NewDocumentStore(gdb),
		cache.NewSnapshotCache(rdb, cfg.Collab.SnapshotTTL),
		kafkaDispatcher,
		cfg.Collab.RingCap,
	)
	hub := ws.NewHub(cache.NewRedisPresence(rdb))
	manager := ws.NewManager(hub, svc, collab.NewSemaphoreControl(cfg.Collab.Semaphore), cfg.Cors.AllowOrigins)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if cfg.Cors.Enabled {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.Cors.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
			ExposeHeaders: []string{"Content-Length", "ETag"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("/collab")
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	// 从 Authorization 或 ?token= 提取 token，本地校验后写入 userId/username
	authed := g.Group("", middleware.AuthMiddleware(auth.Secret(cfg.Auth.Secret)))
	handlers.NewDocumentHandler(svc).Register(authed)
	authed.GET("/ws", manager.WebSocketConnect)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Running.Port), Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	// 先停止 HTTP 再排空事件队列
	kafkaDispatcher.Close()
}
