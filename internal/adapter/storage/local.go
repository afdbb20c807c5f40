package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fabworks/lasercut/internal/config"
	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// LocalStore keeps blobs on disk and issues time-limited download URLs. A URL
// embeds an HS256 token over the stored key, so handing one out never exposes
// the key space and a leaked URL dies with its expiry.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
	urlTTL  time.Duration
	now     func() time.Time
}

type downloadClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{
		root:    cfg.Root,
		baseURL: cfg.BaseURL,
		secret:  []byte(cfg.SignSecret),
		urlTTL:  time.Duration(cfg.URLTTLMinutes) * time.Minute,
		now:     time.Now,
	}, nil
}

var _ interfaces.FileStore = (*LocalStore)(nil)

// Save stores the blob under a fresh uuid-based key, keeping the original
// extension so served files carry a usable content type.
func (s *LocalStore) Save(ctx context.Context, fileName string, r io.Reader) (string, error) {
	key := uuid.NewString() + filepath.Ext(fileName)

	f, err := os.Create(filepath.Join(s.root, key))
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return key, nil
}

// SignedURL issues a download URL valid for the configured TTL. A key that
// does not resolve to a stored blob fails with not-found before any signing
// happens.
func (s *LocalStore) SignedURL(ctx context.Context, key string) (string, error) {
	if _, err := os.Stat(filepath.Join(s.root, filepath.Base(key))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to stat blob: %w", err)
	}

	now := s.now()
	claims := downloadClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.urlTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}

	return fmt.Sprintf("%s/files/download?token=%s", s.baseURL, url.QueryEscape(token)), nil
}

// OpenSigned validates a download token and opens the blob it references.
// Returns the stored key alongside the reader so handlers can name the file.
func (s *LocalStore) OpenSigned(ctx context.Context, tokenString string) (io.ReadCloser, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &downloadClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid download token", domain.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*downloadClaims)
	if !ok || !token.Valid {
		return nil, "", fmt.Errorf("%w: invalid download token", domain.ErrUnauthorized)
	}

	f, err := os.Open(filepath.Join(s.root, filepath.Base(claims.Key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: file %s", domain.ErrNotFound, claims.Key)
		}
		return nil, "", fmt.Errorf("failed to open blob: %w", err)
	}
	return f, claims.Key, nil
}
