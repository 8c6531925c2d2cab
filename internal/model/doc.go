// Package model provides the shared types for the referral system.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Identifiers (members, guilds, channels, roles) are opaque strings
//   - Timestamps are wall-clock times truncated to whole seconds when stored
//   - Optional timestamps are pointers; nil means "unset"
//   - All JSON tags use snake_case
package model
