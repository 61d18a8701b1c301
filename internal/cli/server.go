package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"kuiz-session-service/internal/app"
	"kuiz-session-service/internal/config"
	"kuiz-session-service/internal/domain"
	"kuiz-session-service/internal/infra/memory"
	pginfra "kuiz-session-service/internal/infra/postgres"
	redisinfra "kuiz-session-service/internal/infra/redis"
	"kuiz-session-service/internal/pubsub"
	transport "kuiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.TemplateLoader = memory.NewStaticTemplateLoader(sampleTemplates())
	if pool != nil {
		loader = pginfra.NewTemplateLoader(pool)
	}

	templateTTL := config.TTLDuration(cfg.Template.TTL, 10*time.Minute)
	templates := memory.NewTemplateRepository(loader, templateTTL)

	var keys app.AnswerKeyRepository = templates
	if redisClient != nil {
		keyTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		keys = redisinfra.NewAnswerKeyRepository(redisClient, loader, keyTTL)
	}

	var store app.Store = memory.NewStore()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		store = pginfra.NewStore(db)
	}

	var broker pubsub.Broker = pubsub.NewRegistry()
	if cfg.Stream.Broker == "redis" {
		if redisClient == nil {
			log.Printf("stream.broker is redis but redis.addr is unset, using in-memory broker")
		} else {
			broker = pubsub.NewRedisBroker(redisClient)
		}
	}
	defer broker.Close()

	service := app.NewSessionService(store, templates, keys, broker)
	handler := transport.NewHandler(service)
	heartbeat := config.TTLDuration(cfg.Stream.Heartbeat, 30*time.Second)
	streamHandler := transport.NewStreamHandler(service, broker, heartbeat)
	wsHandler := transport.NewWSHandler(service, broker)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/sessions", handler.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", handler.GetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", handler.UpdateSession)
	mux.HandleFunc("POST /api/sessions/join", handler.Join)
	mux.HandleFunc("POST /api/responses", handler.SubmitAnswer)
	mux.HandleFunc("GET /api/sessions/{id}/stream", streamHandler.ServeStream)
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the stream endpoints hold their connections open.
	}

	go func() {
		log.Printf("starting session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleTemplates seeds the in-memory loader for local runs without Postgres.
func sampleTemplates() map[string]domain.Template {
	return map[string]domain.Template{
		"tpl-1": {
			ID:    "tpl-1",
			Title: "General Knowledge",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Type:          domain.QuestionMultipleChoice,
					Text:          "What is the capital of France?",
					Options:       []string{"Paris", "London", "Berlin", "Madrid"},
					Order:         1,
					CorrectAnswer: "Paris",
					Points:        10,
					TimeLimit:     30,
				},
				{
					ID:            "q2",
					Type:          domain.QuestionTrueFalse,
					Text:          "The Pacific is the largest ocean.",
					Options:       []string{"True", "False"},
					Order:         2,
					CorrectAnswer: "True",
					Points:        5,
				},
			},
		},
	}
}
