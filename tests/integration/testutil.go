//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container with pgvector
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "sehatline_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/sehatline_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(
		fmt.Sprintf("file://%s", getMigrationsPath()),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
	}
	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// SeedDoctor inserts one directory row.
func SeedDoctor(t *testing.T, env *TestEnv, name, specialty, branch string, years int) {
	t.Helper()
	_, err := env.Pool.Exec(context.Background(),
		`INSERT INTO doctors (name, qualification, specialty, experience_years, languages, branch_name, branch_area, branch_phone, timings, is_active)
		 VALUES ($1, 'MBBS', $2, $3, ARRAY['ur','en'], $4, 'Karachi', '021-111-729-526', '{"mon-sat":"9am-5pm"}', true)`,
		name, specialty, years, branch,
	)
	if err != nil {
		t.Fatalf("seeding doctor: %v", err)
	}
}

// SeedProtocol inserts one treatment protocol with the given embedding.
func SeedProtocol(t *testing.T, env *TestEnv, title, content, category string, embedding []float32) {
	t.Helper()
	_, err := env.Pool.Exec(context.Background(),
		`INSERT INTO treatment_protocols (title, content, category, embedding)
		 VALUES ($1, $2, $3, $4)`,
		title, content, category, pgvector.NewVector(embedding),
	)
	if err != nil {
		t.Fatalf("seeding protocol: %v", err)
	}
}

// BasisVector returns a 768-dim unit vector along the given axis, so cosine
// similarity between seeded rows and queries is exactly 0 or 1.
func BasisVector(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

// MixedVector blends two axes, giving a known cosine similarity against
// either basis vector.
func MixedVector(axisA, axisB int, weightA, weightB float32) []float32 {
	v := make([]float32, 768)
	v[axisA] = weightA
	v[axisB] = weightB
	return v
}
