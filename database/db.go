package database

import (
	"database/sql"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/panelku/panelku/config"
)

// Datasource wraps the embedded sqlite connection used as the tertiary
// order backend.
type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (*Datasource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	err = createAdminOrdersTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createAdminOrdersTable creates the sqlite table holding order payloads.
// The full order document lives in the payload column; order_id and the
// timestamps exist for keying and trimming.
func createAdminOrdersTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS admin_orders (
			order_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		log.Printf("error creating admin_orders table: %v", err)
	}
	return err
}
