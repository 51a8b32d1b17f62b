// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and validates the playback policy.
//
// Precedence: defaults, then the YAML file, then AERIAL_* environment
// variables. Validation happens here once; the playback core trusts the
// snapshot it is handed.
package config
