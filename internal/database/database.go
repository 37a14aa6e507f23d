package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeromeabel/lapreuveduconcept/internal/config"
	"github.com/jeromeabel/lapreuveduconcept/internal/logging"
	"github.com/jeromeabel/lapreuveduconcept/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The "status" key is "up" or "down".
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// New opens the connection with the configured database/sql driver,
// wraps it in gorm and runs migrations.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (Service, error) {
	sqlDB, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logging.GormLogger(log, cfg.DBSlowThreshold),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error initializing gorm: %w", err)
	}

	log.WithField("driver", cfg.DBDriver).Info("database connected")

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info("database migrations completed")

	return &service{db: db, log: log}, nil
}

// Migrate creates the votes table and its unique (comic_id, visitor_id) index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Vote{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Seed visitors are UUIDs so they are also accepted as visitorId cookies,
// which lets the fixtures be replayed over HTTP.
const (
	SeedVisitorA = "00000000-0000-4000-8000-00000000000a"
	SeedVisitorB = "00000000-0000-4000-8000-00000000000b"
)

// SeedVotes are the development fixtures: comic 001 has two votes, 002 has one.
var SeedVotes = []models.Vote{
	{ComicID: "001", VisitorID: SeedVisitorA},
	{ComicID: "001", VisitorID: SeedVisitorB},
	{ComicID: "002", VisitorID: SeedVisitorA},
}

// Seed inserts SeedVotes, skipping rows that already exist.
func Seed(ctx context.Context, db *gorm.DB) error {
	votes := make([]models.Vote, len(SeedVotes))
	copy(votes, SeedVotes)

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comic_id"}, {Name: "visitor_id"}},
			DoNothing: true,
		}).
		Create(&votes).Error
	if err != nil {
		return fmt.Errorf("failed to seed votes: %w", err)
	}
	return nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		s.log.WithError(err).Warn("database health check failed")
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)
	stats["wait_count"] = fmt.Sprintf("%d", dbStats.WaitCount)

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	s.log.Info("disconnected from database")
	return sqlDB.Close()
}
