// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldItemID = "item_id"
	FieldSource = "source"
	FieldURI    = "uri"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPurpose   = "purpose"

	// Timing fields (milliseconds unless noted)
	FieldDurationMs     = "duration_ms"
	FieldPositionMs     = "position_ms"
	FieldDelayMs        = "delay_ms"
	FieldMaxLengthMs    = "max_length_ms"
	FieldSegmentStartMs = "segment_start_ms"
	FieldSegmentEndMs   = "segment_end_ms"
	FieldSegments       = "segments"
	FieldLoopCount      = "loop_count"
	FieldSpeed          = "speed"
	FieldBranch         = "branch"
	FieldFPS            = "fps"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
