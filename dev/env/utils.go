package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// STATE_PREFIX marks a config path as relative to dev/.state in the workspace root.
const STATE_PREFIX = "<dev_state>"

var modulePattern = regexp.MustCompile(`(?m)^module\s+(\S+)\s*$`)

func declaresModule(dir, module string) bool {
	contents, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	match := modulePattern.FindSubmatch(contents)
	return len(match) == 2 && string(match[1]) == module
}

// WorkspaceRoot walks up from the working directory to the xeroreports go.mod.
func WorkspaceRoot() (string, error) {
	dir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if declaresModule(dir, "xeroreports") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// ResolvePath expands a leading <dev_state> into dev/.state under the workspace root, creating
// the state directory on the way. Other paths are returned untouched.
func ResolvePath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, STATE_PREFIX)
	if !ok {
		return path, nil
	}

	root, err := WorkspaceRoot()
	if err != nil {
		return "", err
	}
	state := filepath.Join(root, "dev", ".state")
	err = os.MkdirAll(state, 0777)
	if err != nil {
		return "", err
	}
	return filepath.Join(state, strings.TrimLeft(rest, `/\`)), nil
}
