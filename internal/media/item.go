// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the already-resolved playable items consumed by the
// playback session.
package media

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SourceTag identifies the transport an item's bytes are read through.
type SourceTag string

const (
	SourceLocal  SourceTag = "local"
	SourceSMB    SourceTag = "smb"
	SourceWebDAV SourceTag = "webdav"
	SourceImmich SourceTag = "immich"
	SourceHTTP   SourceTag = "http"
)

// SourceTags lists every known tag in a stable order.
func SourceTags() []SourceTag {
	return []SourceTag{SourceLocal, SourceSMB, SourceWebDAV, SourceImmich, SourceHTTP}
}

// ParseSourceTag maps a case-insensitive name to a known tag.
func ParseSourceTag(s string) (SourceTag, error) {
	tag := SourceTag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SourceTags() {
		if tag == known {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unknown source tag %q", s)
}

// Kind distinguishes videos from stills.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// Item is one playable entry.
type Item struct {
	URI    string    `yaml:"uri" json:"uri"`
	Source SourceTag `yaml:"source" json:"source"`
	Kind   Kind      `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Display metadata for overlays; the session only logs it.
	Location string `yaml:"location,omitempty" json:"location,omitempty"`

	// DurationHintMs is used by simulation only. Real players report duration
	// once buffered.
	DurationHintMs int64   `yaml:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	FrameRateHint  float64 `yaml:"fps,omitempty" json:"fps,omitempty"`
}

// IsVideo reports whether the item is a video (the zero Kind counts as video).
func (i Item) IsVideo() bool {
	return i.Kind == "" || i.Kind == KindVideo
}

// Normalized returns a copy with surrounding whitespace trimmed, a known
// source tag in canonical form and the display label in NFC. Shares exported
// from macOS often carry decomposed file names.
func (i Item) Normalized() Item {
	i.URI = strings.TrimSpace(i.URI)
	if tag, err := ParseSourceTag(string(i.Source)); err == nil {
		i.Source = tag
	}
	i.Location = norm.NFC.String(strings.TrimSpace(i.Location))
	return i
}
