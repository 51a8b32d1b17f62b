// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFactory opens HTTP(S) URLs, using a Range request for offsets.
type HTTPFactory struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFactory returns a factory with a bounded connect timeout.
func NewHTTPFactory() *HTTPFactory {
	return &HTTPFactory{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "aerial",
	}
}

func (f *HTTPFactory) Open(ctx context.Context, uri string, offset int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
	case offset == 0 && resp.StatusCode == http.StatusOK:
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %d", uri, resp.StatusCode)
	}
	return resp.Body, nil
}
