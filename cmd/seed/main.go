package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/AhmetDumanli/Dakik-new/internal/db"
	"github.com/AhmetDumanli/Dakik-new/internal/obs"
)

func main() {
	logger := obs.NewLogger("seed", os.Getenv("LOG_LEVEL"), true)
	logger.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	owners := getInt("SEED_OWNERS", 50)
	perOwner := getInt("SEED_EVENTS_PER_OWNER", 40)

	if err := db.RunMigrations(dsn, db.EventsMigrations, logger); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.DefaultPoolOptions)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedEvents(context.Background(), pool, faker, owners, perOwner, logger); err != nil {
		logger.Fatalf("seed events: %v", err)
	}

	logger.Info("seed complete")
}

// seedEvents gives every owner perOwner back-to-back events starting
// tomorrow. Windows of one owner never overlap.
func seedEvents(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, owners, perOwner int, logger logrus.FieldLogger) error {
	logger.Infof("seeding %d events for %d owners", owners*perOwner, owners)

	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	for owner := 1; owner <= owners; owner++ {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		start := base
		for i := 0; i < perOwner; i++ {
			length := time.Duration(faker.IntRange(2, 8)) * 15 * time.Minute
			end := start.Add(length)

			_, err := tx.Exec(ctx, `
				INSERT INTO events (owner_id, start_time, end_time, description, is_public)
				VALUES ($1, $2, $3, $4, $5)
			`, int64(owner), start, end, fmt.Sprintf("%s with %s", faker.JobTitle(), faker.Name()), faker.Float64() < 0.8)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			start = end.Add(time.Duration(faker.IntRange(0, 4)) * 15 * time.Minute)
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		if owner%10 == 0 || owner == owners {
			logger.Infof("owners seeded: %d/%d", owner, owners)
		}
	}

	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
