package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// LocalStore persists objects on disk under a base directory and serves them through
// signed tokens resolved by the API.
type LocalStore struct {
	baseDir   string
	urlPrefix string
	signer    *SignedURLSigner
}

// NewLocalStore ensures the base directory exists. urlPrefix is prepended to signed
// tokens, e.g. "/api/files/images/".
func NewLocalStore(baseDir, urlPrefix string, signer *SignedURLSigner) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, urlPrefix: urlPrefix, signer: signer}, nil
}

// Put streams body into the file addressed by key.
func (s *LocalStore) Put(ctx context.Context, key, _ string, body io.Reader, _ int64) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, readerWithContext(ctx, body)); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Open returns a read handle for the stored object.
func (s *LocalStore) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Delete removes the object, reporting ErrObjectNotFound when absent.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// SignedURL returns an API URL carrying a signed token for key.
func (s *LocalStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if _, err := s.resolve(key); err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Sign(key, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.urlPrefix + token, expiresAt, nil
}

// Resolve verifies a signed token and returns the object key it grants.
func (s *LocalStore) Resolve(token string) (string, error) {
	key, _, err := s.signer.Verify(token)
	return key, err
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
