package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"training-quiz-service/internal/app"
	"training-quiz-service/internal/config"
	"training-quiz-service/internal/domain"
	"training-quiz-service/internal/infra/memory"
	pginfra "training-quiz-service/internal/infra/postgres"
	redisinfra "training-quiz-service/internal/infra/redis"
	"training-quiz-service/internal/logger"
	transport "training-quiz-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz-taking server",
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

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

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
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var attemptStore app.AttemptStore = memory.NewAttemptStore()
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
		attemptStore = pginfra.NewAttemptStore(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var registry app.ControllerRegistry
	if redisClient != nil {
		registry = redisinfra.NewControllerRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewControllerRegistry()
	}

	answerRetry := config.Duration(cfg.Attempt.AnswerRetry, 2*time.Second)
	progress := memory.NewProgressLog(log)
	service := app.NewAttemptService(quizRepo, attemptStore, progress, registry, log,
		app.WithAnswerRetry(answerRetry))
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting training quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the no-database dev mode with one attemptable quiz.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-onboarding": {
			ID:           "quiz-onboarding",
			CourseID:     "course-onboarding",
			Title:        "Workplace Safety Basics",
			Description:  "Covers the mandatory safety briefing.",
			PassingScore: 80,
			MaxAttempts:  3,
			IsPublished:  true,
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is the emergency number to dial on site?",
					Type:          domain.MultipleChoice,
					Options:       []string{"112", "555", "999"},
					CorrectAnswer: "112",
					Points:        1,
					OrderIndex:    0,
				},
				{
					ID:            "q2",
					Text:          "Fire doors may be propped open during business hours.",
					Type:          domain.TrueFalse,
					CorrectAnswer: "False",
					Points:        1,
					OrderIndex:    1,
					Explanation:   "Fire doors must stay closed to contain smoke.",
				},
				{
					ID:            "q3",
					Text:          "Name the document that lists hazardous substances.",
					Type:          domain.FillInBlank,
					CorrectAnswer: "Safety Data Sheet",
					Points:        2,
					OrderIndex:    2,
				},
			},
		},
	}
}
