package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// pure-Go sqlite driver registered as "sqlite"
	_ "modernc.org/sqlite"

	"promoHub/domain"
	"promoHub/pkg/config"
	"promoHub/pkg/logger"
)

// Open connects to the configured driver with pooling and retry.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		safeDSN   string
	)

	switch cfg.Database.Driver {
	case "sqlite":
		dialector = SQLiteDialector(cfg.Database.SQLitePath)
		safeDSN = cfg.Database.SQLitePath
	default:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password,
			cfg.Database.Name, cfg.Database.SSLMode)
		dialector = postgres.Open(dsn)
		safeDSN = strings.Replace(dsn, "password="+cfg.Database.Password, "password=******", 1)
	}

	logger.Info("Connecting to database", "driver", cfg.Database.Driver, "dsn", safeDSN)

	gormCfg := &gorm.Config{
		Logger:  gormLogger(cfg.App.Environment),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	retries := cfg.Database.ConnectRetries
	if retries <= 0 {
		retries = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	backoff := time.Second
	for attempt := 1; attempt <= retries; attempt++ {
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		logger.Warn("Database connection failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if attempt < retries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY storms.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// SQLiteDialector builds a gorm dialector on the pure-Go sqlite driver.
func SQLiteDialector(dsn string) gorm.Dialector {
	if !strings.Contains(dsn, "_pragma=busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
}

// OpenInMemory returns a migrated sqlite database private to the caller.
func OpenInMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(SQLiteDialector(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Principal{},
		&domain.Pool{},
		&domain.RewardUnit{},
		&domain.AllocationAttempt{},
		&domain.Wallet{},
		&domain.WalletTransaction{},
		&domain.Ticket{},
		&domain.TicketSequence{},
		&domain.BonusGrant{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLogger(env string) gormlogger.Interface {
	if strings.ToLower(env) == "development" {
		return gormlogger.Default.LogMode(gormlogger.Warn)
	}
	return gormlogger.Default.LogMode(gormlogger.Silent)
}
