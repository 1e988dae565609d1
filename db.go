package emwin

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Catalog is an SQLite database recording every conversion. It lets a
// Converter skip images that have not changed since they were last
// converted with the same options.
type Catalog struct {
	db *sql.DB
}

// Record is a single catalog entry
type Record struct {
	Source  string
	SHA1    string
	Options string
	Symbol  string
	Width   int
	Height  int
	Layout  string
	RawSHA1 string
}

// NewCatalog opens or creates the catalog stored in file
func NewCatalog(file string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// Conversions run concurrently during a scan, serialize the writes
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS conversion (id INTEGER PRIMARY KEY NOT NULL, source TEXT NOT NULL, sha1 TEXT NOT NULL, options TEXT NOT NULL, symbol TEXT NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, layout TEXT NOT NULL, raw_sha1 TEXT NOT NULL, UNIQUE(source, options))"); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{
		db: db,
	}, nil
}

// Close closes the underlying database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add stores r, replacing any previous record for the same source and
// options
func (c *Catalog) Add(r Record) error {
	if _, err := c.db.Exec("INSERT OR REPLACE INTO conversion (source, sha1, options, symbol, width, height, layout, raw_sha1) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", r.Source, r.SHA1, r.Options, r.Symbol, r.Width, r.Height, r.Layout, r.RawSHA1); err != nil {
		return err
	}
	return nil
}

// Find returns the record for source converted with options, or nil if
// there isn't one
func (c *Catalog) Find(source, options string) (*Record, error) {
	r := Record{
		Source:  source,
		Options: options,
	}
	switch err := c.db.QueryRow("SELECT sha1, symbol, width, height, layout, raw_sha1 FROM conversion WHERE source = ? AND options = ?", source, options).Scan(&r.SHA1, &r.Symbol, &r.Width, &r.Height, &r.Layout, &r.RawSHA1); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return &r, nil
	default:
		return nil, err
	}
}

// List returns every record ordered by source
func (c *Catalog) List() ([]Record, error) {
	rows, err := c.db.Query("SELECT source, sha1, options, symbol, width, height, layout, raw_sha1 FROM conversion ORDER BY source, options")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Source, &r.SHA1, &r.Options, &r.Symbol, &r.Width, &r.Height, &r.Layout, &r.RawSHA1); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
