package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore writes objects to a local directory. Objects are served
// unsigned by Handler, so it suits development and single-node setups.
type FilesystemStore struct {
	dir     string
	baseURL string
}

// NewFilesystemStore creates dir if needed. Returned URLs are
// baseURL + "/files/" + key.
func NewFilesystemStore(dir, baseURL string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("objectstore.NewFilesystemStore: %w", err)
	}

	return &FilesystemStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (f *FilesystemStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	const op = "objectstore.FilesystemStore.Put"

	if err := validateKey(key); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, key)); err != nil {
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return f.baseURL + "/files/" + key, nil
}

func (f *FilesystemStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("objectstore.FilesystemStore.Delete: %w", err)
	}

	err := os.Remove(filepath.Join(f.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("objectstore.FilesystemStore.Delete: %w", err)
	}

	return nil
}

// Handler serves stored objects. Mount it at /files/.
func (f *FilesystemStore) Handler() http.Handler {
	return http.StripPrefix("/files/", http.FileServer(http.Dir(f.dir)))
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
