package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the bootstrap configuration.
type File struct {
	Database Database `yaml:"database"`
	Discord  Discord  `yaml:"discord"`
	HTTP     HTTP     `yaml:"http"`
	Schedule Schedule `yaml:"schedule"`
	Telegram Telegram `yaml:"telegram"`

	// LookupTimeout bounds every platform call made by the core.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

type Database struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

type Discord struct {
	TokenEnv string   `yaml:"token_env"`
	Guilds   []string `yaml:"guilds"` // empty: every guild the bot is in
}

type HTTP struct {
	Listen        string `yaml:"listen"` // empty disables the admin API
	AdminTokenEnv string `yaml:"admin_token_env"`
}

type Schedule struct {
	Sweep string `yaml:"sweep"`
	Reset string `yaml:"reset"`
}

// Telegram mirrors channel posts to a chat. Disabled when TokenEnv is
// unset or ChatID is zero.
type Telegram struct {
	TokenEnv string `yaml:"token_env"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default bootstrap values.
const (
	DefaultDriver        = "sqlite3"
	DefaultDSN           = "data/referral.db"
	DefaultTokenEnv      = "DISCORD_TOKEN"
	DefaultSweepSchedule = "0 * * * *"
	DefaultResetSchedule = "0 0 * * 1"
	DefaultLookupTimeout = 10 * time.Second
)

// DefaultFile returns the bootstrap used when no file is given.
func DefaultFile() File {
	f := File{}
	f.applyDefaults()
	return f
}

// LoadFile reads a bootstrap file. Unknown fields are rejected. A missing
// file is an error; callers that treat it as optional check os.ErrNotExist.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses bootstrap YAML and fills in defaults.
func ParseFile(data []byte) (File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse config file: %w", err)
	}
	f.applyDefaults()
	if err := f.validate(); err != nil {
		return File{}, fmt.Errorf("invalid config file: %w", err)
	}
	return f, nil
}

func (f *File) applyDefaults() {
	if f.Database.Driver == "" {
		f.Database.Driver = DefaultDriver
	}
	if f.Database.DSN == "" && f.Database.Driver == DefaultDriver {
		f.Database.DSN = DefaultDSN
	}
	if f.Discord.TokenEnv == "" {
		f.Discord.TokenEnv = DefaultTokenEnv
	}
	if f.Schedule.Sweep == "" {
		f.Schedule.Sweep = DefaultSweepSchedule
	}
	if f.Schedule.Reset == "" {
		f.Schedule.Reset = DefaultResetSchedule
	}
	if f.LookupTimeout <= 0 {
		f.LookupTimeout = DefaultLookupTimeout
	}
}

func (f *File) validate() error {
	switch f.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite3 or postgres", f.Database.Driver)
	}
	if f.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", f.Database.Driver)
	}
	return nil
}
