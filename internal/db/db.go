package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            text TEXT,
            image TEXT,
            reply_to INT REFERENCES messages(id) ON DELETE SET NULL,
            status TEXT NOT NULL DEFAULT 'sent',
            created_at TIMESTAMPTZ DEFAULT NOW(),
            CHECK (text IS NOT NULL OR image IS NOT NULL),
            CHECK (status IN ('sent', 'delivered', 'seen'))
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair_status
            ON messages (sender_id, receiver_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at
            ON messages (created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
