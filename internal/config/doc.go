// Package config resolves runtime tunables and loads the bootstrap file.
//
// Tunables (quotas, windows, role and channel ids, reward tiers, timezone)
// are resolved by Resolver.Lookup with a fixed precedence:
//
//  1. a non-empty value stored in the config table
//  2. a non-empty environment variable named after the upper-cased key
//  3. the static default
//
// Every typed accessor goes through Lookup; nothing else reads the config
// table or the environment for tunables.
//
// The bootstrap File (YAML) holds what must be known before the store is
// open: database driver and DSN, platform credentials, listen address and
// schedules.
package config
