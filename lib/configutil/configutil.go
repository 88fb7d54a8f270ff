package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	idx := strings.LastIndexByte(f, '.')
	if idx < 0 {
		return f, ""
	}
	return f[:idx], f[idx+1:]
}

// Path returns the value of the environment variable env when it is set, otherwise fallback.
func Path(env, fallback string) string {
	if value := os.Getenv(env); value != "" {
		return value
	}
	return fallback
}

// localPath maps dir/config.json5 to dir/config.local.json5.
func localPath(name string) string {
	prefix, ext := splitExt(filepath.Base(name))
	local := prefix + ".local"
	if ext != "" {
		local += "." + ext
	}
	return filepath.Join(filepath.Dir(name), local)
}

// decode reads one json5 layer, found is false when the file is missing or empty.
func decode[T any](path string) (out T, found bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

// ReadConfig decodes the json5 file at name and merges <name>.local.<ext> over it, fields set in
// the local file win. It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	out, foundBase, err := decode[T](name)
	if err != nil {
		return out, err
	}

	local := localPath(name)
	override, foundLocal, err := decode[T](local)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merged local config overrides", "local", local)
	}

	if !foundBase && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for name in the working directory and each of its parents, returning
// the first one found.
func ReadRecursively[T any](name string) (T, error) {
	dir, err := os.Getwd()
	if err != nil {
		var zero T
		return zero, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return config, os.ErrNotExist
		}
		dir = parent
	}
}
