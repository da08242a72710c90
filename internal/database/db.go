package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DSN builds the driver connection string.  parseTime maps DATETIME to
// time.Time in UTC; clientFoundRows makes UPDATE report matched rather than
// changed rows, which the conditional updates in package repository rely
// on to tell "unchanged" apart from "lost the race".
func DSN(user, pass, host, port, name string) string {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%s", host, port)
	c.DBName = name
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id            CHAR(36)     NOT NULL PRIMARY KEY,
        login         VARCHAR(64)  NOT NULL,
        password_hash VARCHAR(255) NOT NULL,
        role          ENUM('CLIENT','STAFF','ADMIN') NOT NULL,
        active        BOOLEAN      NOT NULL DEFAULT TRUE,
        created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        UNIQUE KEY uq_accounts_login (login),
        KEY ix_accounts_role (role)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS movies (
        id              CHAR(36)          NOT NULL PRIMARY KEY,
        title           VARCHAR(255)      NOT NULL,
        base_price      DECIMAL(5,2)      NOT NULL,
        screening_room  TINYINT UNSIGNED  NOT NULL,
        available_seats SMALLINT UNSIGNED NOT NULL,
        created_at      TIMESTAMP         NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at      TIMESTAMP         NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
        id           CHAR(36)     NOT NULL PRIMARY KEY,
        showing_time DATETIME(6)  NOT NULL,
        final_price  DECIMAL(5,2) NOT NULL,
        client_id    CHAR(36)     NOT NULL,
        movie_id     CHAR(36)     NOT NULL,
        created_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        KEY ix_tickets_movie (movie_id),
        KEY ix_tickets_client (client_id),
        CONSTRAINT fk_tickets_client FOREIGN KEY (client_id) REFERENCES accounts (id),
        CONSTRAINT fk_tickets_movie  FOREIGN KEY (movie_id)  REFERENCES movies (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
        id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        account_id  CHAR(36)  NOT NULL,
        token_hash  CHAR(64)  NOT NULL,
        expires_at  DATETIME  NOT NULL,
        revoked_at  DATETIME  NULL,
        created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        UNIQUE KEY uq_refresh_hash (token_hash),
        KEY ix_refresh_account (account_id),
        CONSTRAINT fk_refresh_account FOREIGN KEY (account_id) REFERENCES accounts (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
