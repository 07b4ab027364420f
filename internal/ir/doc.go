// Package ir provides the canonical representation types shared by every
// navsync package: tokens, visibility flags, the compiled navigation schema
// and the transition records emitted by the engine.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere; durations are carried as integer milliseconds
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
