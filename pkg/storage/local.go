package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/isassess/isassess/pkg/apperr"
)

// LocalStore keeps files under a directory and serves them through the API.
type LocalStore struct {
	root    string
	urlBase string
}

func NewLocalStore(root, urlBase string) (*LocalStore, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root, urlBase: urlBase}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	key, err := ValidateKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return apperr.Internal(err, "create directory for %s", key)
	}

	f, err := os.Create(p)
	if err != nil {
		return apperr.Internal(err, "create %s", key)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return apperr.Internal(err, "write %s", key)
	}
	if err := f.Close(); err != nil {
		return apperr.Internal(err, "close %s", key)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("file %s not found", key)
	}
	if err != nil {
		return nil, apperr.Internal(err, "open %s", key)
	}
	return f, nil
}

func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	key, err := ValidateKey(key)
	if err != nil {
		return "", err
	}
	return s.urlBase + "?key=" + url.QueryEscape(key), nil
}
