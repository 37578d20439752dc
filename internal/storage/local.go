package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local writes objects below a directory served under a URL prefix.
type Local struct {
	root      string
	urlPrefix string
}

// NewLocal creates a disk-backed store.
func NewLocal(root, urlPrefix string) *Local {
	return &Local{root: root, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// Root is the directory that backs the URL prefix.
func (s *Local) Root() string {
	return s.root
}

// Save writes body to root/key.
func (s *Local) Save(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	return s.urlPrefix + "/" + key, nil
}

// Delete removes the object behind url. Missing files are not an error.
func (s *Local) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.urlPrefix+"/") {
		return ErrForeignURL
	}
	key, err := cleanKey(strings.TrimPrefix(url, s.urlPrefix+"/"))
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// cleanKey resolves dot segments so a key can never leave the root.
func cleanKey(key string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}
