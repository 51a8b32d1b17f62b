// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "errors"

// ErrReleased is returned by Assign after Release.
var ErrReleased = errors.New("session released")
