// Package cache keeps face embeddings so a reference image that recurs across
// evaluation pairs is sent to the model once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"time"

	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/types"
	gocache "github.com/patrickmn/go-cache"
)

// Store is a key/value store for embeddings. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, embedding []float64) error
	Close() error
}

// Memory is a process-local Store.
type Memory struct {
	items *gocache.Cache
}

// NewMemory creates an in-process store. ttl <= 0 keeps entries for the process lifetime.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		return &Memory{items: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Memory{items: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]float64, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), v.([]float64)...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, embedding []float64) error {
	m.items.Set(key, append([]float64(nil), embedding...), gocache.DefaultExpiration)
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.items.ItemCount() }

func (m *Memory) Close() error {
	m.items.Flush()
	return nil
}

// Analyzer decorates a face.Analyzer with an embedding cache. Detection is never cached.
type Analyzer struct {
	inner     face.Analyzer
	store     Store
	namespace string
	logger    *slog.Logger
}

// NewAnalyzer wraps inner. namespace separates embeddings produced by different models.
func NewAnalyzer(inner face.Analyzer, store Store, namespace string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{inner: inner, store: store, namespace: namespace, logger: logger}
}

func (a *Analyzer) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	return a.inner.Detect(ctx, img)
}

// Embed returns the cached embedding for an identical crop, or computes and stores it.
// Cache failures are logged and never fail the request.
func (a *Analyzer) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	key := a.namespace + ":" + Key(img)

	if emb, ok, err := a.store.Get(ctx, key); err != nil {
		a.logger.Warn("embedding cache read failed", "key", key, "error", err)
	} else if ok {
		return emb, nil
	}

	emb, err := a.inner.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := a.store.Set(ctx, key, emb); err != nil {
		a.logger.Warn("embedding cache write failed", "key", key, "error", err)
	}
	return emb, nil
}

// Key is the hex SHA-256 of the image's dimensions and RGBA pixels.
func Key(img image.Image) string {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	h := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(b.Dy()))
	h.Write(dims[:])
	h.Write(rgba.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// Open builds the Store named by backend: "memory", "redis", or "none"/"" for no cache.
func Open(ctx context.Context, backend, redisAddr string, ttl time.Duration) (Store, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(ttl), nil
	case "redis":
		r, err := NewRedis(ctx, redisAddr, ttl)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
