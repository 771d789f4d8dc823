package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/modzart/internal/common"
)

// DownloadRoute is the path prefix of the retrieval endpoint serving local
// objects.
const DownloadRoute = "/download/"

// Local keeps objects as files under a root directory. Writes go to a temp
// file in the destination directory followed by a rename, so readers never
// observe a partial object.
type Local struct {
	root    string
	baseURL string
	// dirs orders directory creation in Put against pruning in Delete.
	dirs sync.RWMutex
}

// NewLocal creates a Local store rooted at root, creating the directory if
// needed. baseURL prefixes generated links (e.g. "https://api.example.com");
// empty yields host-relative links.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Local{root: absRoot, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the absolute storage root.
func (l *Local) Root() string { return l.root }

// Resolve maps key to a file path under the root. Keys escaping the root
// yield ErrInvalidKey.
func (l *Local) Resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	joined := filepath.Join(l.root, filepath.Clean(filepath.FromSlash(key)))
	rel, err := filepath.Rel(l.root, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidKey, key)
	}
	return joined, nil
}

// Open resolves key and returns the path of an existing regular file.
// Missing objects yield common.ErrorNotFound.
func (l *Local) Open(key string) (string, error) {
	path, err := l.Resolve(key)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", common.ErrorNotFound
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", common.ErrorNotFound
	}
	return path, nil
}

func (l *Local) Put(_ context.Context, localPath, key string) (string, error) {
	dest, err := l.Resolve(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	if err := l.copyFile(localPath, dest); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	return key, nil
}

func (l *Local) copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer in.Close()

	tmp, err := l.createTemp(dest)
	if err != nil {
		return err
	}

	_, werr := io.Copy(tmp, in)
	cerr := tmp.Close()

	if werr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("stream write: %w", werr)
	}
	if cerr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("flush: %w", cerr)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("rename to %q: %w", dest, err)
	}
	return nil
}

// createTemp makes the destination directory and a temp file inside it. The
// temp file keeps the directory non-empty until the rename.
func (l *Local) createTemp(dest string) (*os.File, error) {
	l.dirs.RLock()
	defer l.dirs.RUnlock()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create tmp: %w", err)
	}
	return tmp, nil
}

// Delete removes the object and then the directories it leaves empty, up
// to but excluding the root. Pruning is best effort.
func (l *Local) Delete(_ context.Context, key string) error {
	path, err := l.Resolve(key)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageDelete, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", common.ErrStorageDelete, err)
	}
	l.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

func (l *Local) pruneEmptyDirs(dir string) {
	l.dirs.Lock()
	defer l.dirs.Unlock()

	prefix := l.root + string(filepath.Separator)
	for strings.HasPrefix(dir, prefix) {
		// os.Remove fails on a non-empty or missing directory, which ends the walk.
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// URL ignores ttl: local links do not expire and access is checked by the
// serving endpoint.
func (l *Local) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, err := l.Open(key); err != nil {
		return "", err
	}
	return l.baseURL + DownloadRoute + escapeKey(key), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
