package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"training-quiz-service/internal/app"
	"training-quiz-service/internal/domain"
	"training-quiz-service/internal/infra/memory"
	pginfra "training-quiz-service/internal/infra/postgres"
	pgmigrations "training-quiz-service/internal/infra/postgres/migrations"
	redisinfra "training-quiz-service/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	quizRepo := redisinfra.NewQuizRepository(redisClient, pginfra.NewQuizLoader(pool), 5*time.Minute)
	attemptStore := pginfra.NewAttemptStore(pool)
	registry := redisinfra.NewControllerRegistry(redisClient, 5*time.Minute)
	progress := memory.NewProgressLog(zap.NewNop())
	service := app.NewAttemptService(quizRepo, attemptStore, progress, registry, zap.NewNop())

	controller, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := controller.RecordAnswer("q1", "4"); err != nil {
		t.Fatalf("record q1: %v", err)
	}
	if err := controller.RecordAnswer("q2", " four "); err != nil {
		t.Fatalf("record q2: %v", err)
	}
	controller.Flush()

	attempt, err := controller.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if attempt.Score == nil || *attempt.Score != 100 {
		t.Fatalf("expected score 100, got %v", attempt.Score)
	}
	if !attempt.Completed() {
		t.Fatalf("expected finalized attempt")
	}

	// The finalized row survives a fresh read from Postgres.
	prior, err := attemptStore.PriorAttempts(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("prior attempts: %v", err)
	}
	if len(prior) != 1 || !prior[0].Completed() || *prior[0].Score != 100 {
		t.Fatalf("expected one finalized attempt with score 100, got %+v", prior)
	}
	if prior[0].Answers["q2"] != " four " {
		t.Fatalf("expected raw answer string persisted, got %q", prior[0].Answers["q2"])
	}

	// Pass notification fired exactly once.
	if got := progress.CompletedCourses("u1"); len(got) != 1 || got[0] != "course-1" {
		t.Fatalf("expected one course completion, got %v", got)
	}

	// maxAttempts=1: a second start is rejected.
	if _, err := service.Start(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptLimitExceeded) {
		t.Fatalf("expected ErrAttemptLimitExceeded, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		CourseID:     "course-1",
		Title:        "Mental Arithmetic",
		PassingScore: 80,
		MaxAttempts:  1,
		IsPublished:  true,
		Questions: []domain.Question{
			{ID: "q1", Text: "What is 2 + 2?", Type: domain.MultipleChoice,
				Options: []string{"3", "4", "5"}, CorrectAnswer: "4", Points: 1, OrderIndex: 0},
			{ID: "q2", Text: "Spell out 2 + 2.", Type: domain.FillInBlank,
				CorrectAnswer: "Four", Points: 1, OrderIndex: 1},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
