package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone resolution must not depend on the host zoneinfo
)

// Source says which layer a resolved value came from.
type Source string

const (
	SourceStore   Source = "store"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
)

// Store is the persisted layer. *store.Store satisfies it.
type Store interface {
	ConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value string) error
}

// Entry is one resolved tunable.
type Entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// Resolver resolves tunables. It holds no cache: each call reads the
// store, so a value set by an admin takes effect on the next read.
type Resolver struct {
	store    Store
	env      func(string) (string, bool)
	defaults map[string]string
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv replaces the environment lookup (os.LookupEnv by default).
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) { r.env = lookup }
}

// WithLogger sets the logger used for store read failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithDefaults overrides individual static defaults.
func WithDefaults(overrides map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range overrides {
			r.defaults[k] = v
		}
	}
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		env:      os.LookupEnv,
		defaults: make(map[string]string, len(Defaults)),
		logger:   slog.Default(),
	}
	for k, v := range Defaults {
		r.defaults[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup resolves key: store, then environment, then static default. Empty
// values at a layer fall through to the next. A store read failure is
// logged and treated as unset.
func (r *Resolver) Lookup(ctx context.Context, key string) (string, Source) {
	if r.store != nil {
		v, ok, err := r.store.ConfigValue(ctx, key)
		if err != nil {
			r.logger.Warn("config store read failed", "key", key, "error", err)
		} else if ok && v != "" {
			return v, SourceStore
		}
	}
	if v, ok := r.env(strings.ToUpper(key)); ok && v != "" {
		return v, SourceEnv
	}
	return r.defaults[key], SourceDefault
}

// String resolves key as a string.
func (r *Resolver) String(ctx context.Context, key string) string {
	v, _ := r.Lookup(ctx, key)
	return v
}

// Int resolves key as an integer. A value that does not parse falls back to
// the static default, and to 0 if that does not parse either.
func (r *Resolver) Int(ctx context.Context, key string) int {
	v, src := r.Lookup(ctx, key)
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		return n
	}
	r.logger.Warn("config value is not an integer", "key", key, "value", v, "source", src)
	n, err = strconv.Atoi(r.defaults[key])
	if err != nil {
		return 0
	}
	return n
}

// Days resolves key as a whole number of days.
func (r *Resolver) Days(ctx context.Context, key string) time.Duration {
	return time.Duration(r.Int(ctx, key)) * 24 * time.Hour
}

// Location resolves the timezone. An unknown zone falls back to the static
// default and then to UTC.
func (r *Resolver) Location(ctx context.Context) *time.Location {
	name := r.String(ctx, KeyTimezone)
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	r.logger.Warn("unknown timezone", "timezone", name)
	if loc, err := time.LoadLocation(r.defaults[KeyTimezone]); err == nil {
		return loc
	}
	return time.UTC
}

// Set persists a value in the store layer.
func (r *Resolver) Set(ctx context.Context, key, value string) error {
	if r.store == nil {
		return fmt.Errorf("set %s: no config store", key)
	}
	if err := r.store.SetConfig(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Effective resolves every known key, sorted by key.
func (r *Resolver) Effective(ctx context.Context) []Entry {
	keys := make([]string, 0, len(r.defaults))
	for k := range r.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, src := r.Lookup(ctx, k)
		entries = append(entries, Entry{Key: k, Value: v, Source: src})
	}
	return entries
}
