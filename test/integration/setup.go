package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"race-kart/internal/config"
	"race-kart/internal/database"
	"race-kart/internal/model"
	"race-kart/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB creates a PostgreSQL test container and a migrated connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	// Same pool construction as the server
	dbConfig := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		SSLMode:         "disable",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 5 * time.Minute,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
	}
}

// SeedRaces inserts the test race catalogue.
func SeedRaces(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	races := []model.Race{
		{
			ID:       "R1",
			Name:     "Night Run",
			Location: "Sao Paulo",
			Date:     time.Date(2026, 11, 20, 22, 0, 0, 0, time.UTC),
			Options: []model.RaceOption{
				{Distance: "5K", Lots: []model.Lot{{Name: "1st lot", Price: decimal.NewFromInt(50)}}},
				{Distance: "10K", Lots: []model.Lot{{Name: "1st lot", Price: decimal.NewFromInt(70)}}},
			},
		},
		{
			ID:       "R2",
			Name:     "Beach Half",
			Location: "Santos",
			Date:     time.Date(2026, 12, 6, 6, 30, 0, 0, time.UTC),
			Options: []model.RaceOption{
				{Distance: "21K", Lots: []model.Lot{{Name: "1st lot", Price: decimal.NewFromInt(120)}}},
			},
		},
	}

	for _, r := range races {
		_, err := pool.Exec(ctx,
			"INSERT INTO races (id, name, image, location, race_date, options) VALUES ($1, $2, $3, $4, $5, $6)",
			r.ID, r.Name, r.Image, r.Location, r.Date, r.Options,
		)
		if err != nil {
			t.Fatalf("failed to seed race %s: %v", r.ID, err)
		}
	}
}

// SeedCoupon stores a percent coupon limited to maxUses.
func SeedCoupon(t *testing.T, pool *pgxpool.Pool, code string, percent int64, maxUses int) {
	t.Helper()

	repo := repository.NewCouponRepository(pool, zerolog.Nop())
	_, err := repo.UpsertMany(context.Background(), []model.Coupon{{
		SchemaVersion: model.CurrentSchemaVersion,
		ID:            "coupon-" + code,
		Code:          code,
		DiscountType:  model.DiscountPercent,
		DiscountValue: decimal.NewFromInt(percent),
		MaxUses:       &maxUses,
		Active:        true,
	}})
	if err != nil {
		t.Fatalf("failed to seed coupon %s: %v", code, err)
	}
}

// CouponUses returns the stored use counter of a coupon.
func CouponUses(t *testing.T, pool *pgxpool.Pool, code string) int {
	t.Helper()

	var uses int
	err := pool.QueryRow(context.Background(), "SELECT current_uses FROM coupons WHERE code = $1", code).Scan(&uses)
	if err != nil {
		t.Fatalf("failed to read coupon %s: %v", code, err)
	}
	return uses
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"participants", "orders", "coupons", "abandoned_carts", "carts", "guest_carts", "races"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
