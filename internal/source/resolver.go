// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source dispatches a media item's source tag to the transport that
// opens its byte stream. Transports are opaque to the playback core.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ManuGH/aerial/internal/media"
)

var (
	// ErrUnsupportedSource means no factory is registered for a tag.
	ErrUnsupportedSource = errors.New("no stream factory for source")
	// ErrNilFactory is returned when registering a nil factory.
	ErrNilFactory = errors.New("nil stream factory")
)

// Factory opens the byte stream behind a URI, starting at offset bytes.
type Factory interface {
	Open(ctx context.Context, uri string, offset int64) (io.ReadCloser, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, uri string, offset int64) (io.ReadCloser, error)

func (f FactoryFunc) Open(ctx context.Context, uri string, offset int64) (io.ReadCloser, error) {
	return f(ctx, uri, offset)
}

// Resolver returns the factory for a source tag.
type Resolver interface {
	Resolve(tag media.SourceTag) (Factory, error)
}

// Registry is a Resolver backed by a tag->factory table.
type Registry struct {
	mu        sync.RWMutex
	factories map[media.SourceTag]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[media.SourceTag]Factory{}}
}

// NewDefaultRegistry registers the transports this module ships: local files
// through fs and plain HTTP(S). SMB, WebDAV and Immich are registered by the
// caller.
func NewDefaultRegistry(local *LocalFactory, web *HTTPFactory) *Registry {
	r := NewRegistry()
	if local != nil {
		_ = r.Register(media.SourceLocal, local)
	}
	if web != nil {
		_ = r.Register(media.SourceHTTP, web)
	}
	return r
}

// Register adds or replaces the factory for tag.
func (r *Registry) Register(tag media.SourceTag, f Factory) error {
	if f == nil {
		return fmt.Errorf("register %s: %w", tag, ErrNilFactory)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
	return nil
}

func (r *Registry) Resolve(tag media.SourceTag) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, tag)
	}
	return f, nil
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []media.SourceTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]media.SourceTag, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
