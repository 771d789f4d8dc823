// Package filex holds small filesystem helpers used by the upload pipeline.
package filex

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/modzart/internal/common"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// BaseName strips every directory component from a client supplied file
// name, including Windows style separators. It returns "" when nothing
// usable is left.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// CreateUnique opens a new file in dir named "<random>_<hint>". The random
// prefix makes concurrent uploads with the same name collision-proof and
// O_EXCL guarantees an existing file is never reused.
func CreateUnique(dir, hint string) (*os.File, error) {
	prefix, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("random suffix: %w", err)
	}

	name := prefix
	if base := BaseName(hint); base != "" {
		name = prefix + "_" + base
	}

	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
}
