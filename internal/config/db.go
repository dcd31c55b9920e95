package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// OpenDB opens the canonical store database for the configured driver.
// It returns (nil, nil) for the in-memory driver.
func OpenDB(env Env) (*sql.DB, error) {
	var (
		driverName string
		dsn        string
	)
	switch env.StoreDriver {
	case "memory":
		return nil, nil
	case "mysql":
		driverName = "mysql"
		dsn = env.DBDSN
		if dsn == "" {
			dsn = "root:@tcp(127.0.0.1:3306)/route_engine?parseTime=true&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s"
		}
	case "sqlite":
		driverName = "sqlite"
		dsn = env.SQLitePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", env.StoreDriver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(10 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	log.Printf("connected to %s store", driverName)
	return db, nil
}
