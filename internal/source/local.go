// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/afero"
)

// LocalFactory opens files from a filesystem. URIs may be plain paths or
// file:// URLs.
type LocalFactory struct {
	Fs afero.Fs
}

// NewLocalFactory returns a factory over the OS filesystem.
func NewLocalFactory() *LocalFactory {
	return &LocalFactory{Fs: afero.NewOsFs()}
}

func (f *LocalFactory) Open(ctx context.Context, uri string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := localPath(uri)
	if err != nil {
		return nil, err
	}

	file, err := f.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("seek %s to %d: %w", path, offset, err)
		}
	}
	return file, nil
}

func localPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file:") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse file uri: %w", err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file uri %q has no path", uri)
	}
	return u.Path, nil
}
