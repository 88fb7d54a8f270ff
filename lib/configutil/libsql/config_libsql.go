package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	devenv "xeroreports/dev/env"
	"xeroreports/pkg/migrations"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Struct is the database section of a service config. A non-empty Url selects a remote libsql
// database, otherwise File is opened as a local sqlite database.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// OpenDB opens the configured database and applies schema to it. Schema statements must be
// idempotent (`create table if not exists ...`).
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("a database file or url was not specified")
		}
		dbpath, err := devenv.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		return migrations.OpenAndMigrateDB(schema, dbpath)
	}

	values := url.Values{}
	if config.AuthToken != "" {
		values.Add("authToken", config.AuthToken)
	}
	dsn := config.Url
	if len(values) > 0 {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + values.Encode()
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, err
	}
	err = migrations.Apply(db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
