// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ManuGH/aerial/internal/media"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveDispatchesOnTag(t *testing.T) {
	smb := FactoryFunc(func(context.Context, string, int64) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("smb")), nil
	})
	r := NewDefaultRegistry(&LocalFactory{Fs: afero.NewMemMapFs()}, NewHTTPFactory())
	require.NoError(t, r.Register(media.SourceSMB, smb))

	assert.Equal(t, []media.SourceTag{media.SourceHTTP, media.SourceLocal, media.SourceSMB}, r.Tags())

	f, err := r.Resolve(media.SourceSMB)
	require.NoError(t, err)
	rc, err := f.Open(context.Background(), "smb://nas/share/a.mov", 0)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "smb", string(body))

	_, err = r.Resolve(media.SourceWebDAV)
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	assert.ErrorIs(t, r.Register(media.SourceImmich, nil), ErrNilFactory)
}

func TestLocalFactory_OpenWithOffset(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/videos/a.mov", []byte("0123456789"), 0o644))
	f := &LocalFactory{Fs: fs}

	rc, err := f.Open(context.Background(), "file:///videos/a.mov", 4)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(body))

	_, err = f.Open(context.Background(), "/videos/missing.mov", 0)
	assert.Error(t, err)
}

func TestHTTPFactory_RangeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "bytes=5-" {
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("tail"))
			return
		}
		_, _ = w.Write([]byte("whole"))
	}))
	defer srv.Close()

	f := NewHTTPFactory()
	rc, err := f.Open(context.Background(), srv.URL+"/a.mov", 0)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "whole", string(body))

	rc, err = f.Open(context.Background(), srv.URL+"/a.mov", 5)
	require.NoError(t, err)
	body, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "tail", string(body))
}

func TestHTTPFactory_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPFactory().Open(context.Background(), srv.URL, 0)
	assert.Error(t, err)
}
