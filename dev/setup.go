package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	devenv "xeroreports/dev/env"
	"xeroreports/internal/db"
	"xeroreports/internal/session"
	"xeroreports/pkg/migrations"
)

const sampleSelectors = `// Selector overrides, one list of strategies per element name.
// Plain entries are css selectors, "xpath:" prefixed entries are xpath.
// Listed elements replace the built in strategies wholesale.
//
// {
//   org_switcher: ["[data-automationid='org-switcher']", "xpath://button[contains(., 'Switch')]"],
// }
{}
`

// writeOnce writes contents to the given dev state path unless a file is already there.
func writeOnce(name, contents string, perm os.FileMode) (string, error) {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", name))
	if err != nil {
		return "", err
	}
	_, err = os.Stat(path)
	if err == nil {
		fmt.Println(name, "already exists at", path)
		return path, nil
	}
	fmt.Println("writing", path)
	return path, os.WriteFile(path, []byte(contents), perm)
}

func CreateConfig() error {
	_, err := writeOnce("config.json5", devenv.SampleConfig, 0666)
	if err != nil {
		return err
	}
	_, err = writeOnce("selectors.json5", sampleSelectors, 0666)
	return err
}

func CreateDB() error {
	path, err := devenv.ResolvePath("<dev_state>/xero.db")
	if err != nil {
		return err
	}
	fmt.Println("migrating database at", path)
	database, err := migrations.OpenAndMigrateDB(db.Schema, path)
	if err != nil {
		return err
	}
	return database.Close()
}

func CreateSessionKey() error {
	secret, err := session.GenerateSecret()
	if err != nil {
		return err
	}
	_, err = writeOnce(
		"session.env",
		fmt.Sprintf("export %s=%s\n", session.ENV_SESSION_KEY, secret),
		0600,
	)
	return err
}

func CreateStateDirs() error {
	for _, dir := range []string{"downloads", "screenshots"} {
		path, err := devenv.ResolvePath(filepath.Join("<dev_state>", dir))
		if err != nil {
			return err
		}
		err = os.MkdirAll(path, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

func PrintUsage() {
	slog.Info("run the server with `source dev/.state/session.env && XERO_CONFIG=dev/.state/config.json5 go run ./cmd/server`")
	slog.Info("then log in with `go run ./cmd/xero-cli auth setup` followed by `auth complete`")
}
