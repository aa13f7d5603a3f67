// Package resolver fetches the content bytes behind document references.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/storage"
	"github.com/weaveai/weave/pkg/utils"
)

// ContentSource is the read side of the content store.
type ContentSource interface {
	GetContent(ctx context.Context, hash string) ([]byte, error)
}

// Resolver resolves content hashes against a ContentSource.
type Resolver struct {
	source     ContentSource
	verifyHash bool
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHashVerification controls whether fetched bytes must hash to the requested hash.
func WithHashVerification(enabled bool) Option {
	return func(r *Resolver) { r.verifyHash = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver. Hash verification is on unless disabled.
func New(source ContentSource, opts ...Option) *Resolver {
	r := &Resolver{source: source, verifyHash: true}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// FetchContentByHash returns the bytes stored under hash. An unknown hash is a
// *models.NotFoundError; there is no empty fallback. With verification on, bytes that
// do not hash to hash are rejected as a *models.ProviderError.
func (r *Resolver) FetchContentByHash(ctx context.Context, hash string) ([]byte, error) {
	data, err := r.source.GetContent(ctx, hash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &models.NotFoundError{Kind: "content", Key: hash}
	}
	if r.verifyHash {
		if got := storage.ContentHash(data); got != hash {
			r.logger.Warn("Content hash mismatch",
				zap.String("want", hash),
				zap.String("got", got))
			return nil, models.NewProviderError("resolve", fmt.Errorf("content for %s hashes to %s", hash, got))
		}
	}
	return data, nil
}

// ResolveAll fetches content for every reference concurrently. The result is in reference
// order. The first failure cancels the remaining fetches and the whole set is discarded.
func (r *Resolver) ResolveAll(ctx context.Context, refs []models.DocumentReference) ([][]byte, error) {
	out := make([][]byte, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			data, err := r.FetchContentByHash(gctx, ref.ContentHash)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", ref.RefID, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
