package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	devenv "xeroreports/dev/env"
	"xeroreports/lib/telemetry"
	"xeroreports/pkg/migrations"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

// SetupService prepares telemetry and a migrated database for a package under test. The
// returned cleanup closes the database.
func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanupTelemetry := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	if params.DbSchema == "" {
		return ServiceResult{}, cleanupTelemetry
	}

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	db, err := migrations.OpenAndMigrateDB(params.DbSchema, dbpath)
	if err != nil {
		t.Fatal(err)
	}

	return ServiceResult{DB: db}, func() {
		err := db.Close()
		if err != nil {
			t.Error(err)
		}
		cleanupTelemetry()
	}
}
