package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Signal backends.
const (
	SignalFile  = "file"
	SignalRedis = "redis"
	SignalLocal = "local"
)

// Settings selects and configures the relay's store and signal transport.
type Settings struct {
	// AppGroupID is the shared container both processes use. Empty leaves
	// the store unavailable.
	AppGroupID string `env:"EVENTRELAY_APP_GROUP_ID"`

	// ContainersRoot holds one directory per app group.
	// Defaults to <tmp>/eventrelay.
	ContainersRoot string `env:"EVENTRELAY_CONTAINERS_ROOT"`

	// SignalDir is watched by the file signal backend.
	// Defaults to <ContainersRoot>/signals.
	SignalDir string `env:"EVENTRELAY_SIGNAL_DIR"`

	StoreBackend  string `env:"EVENTRELAY_STORE_BACKEND"  envDefault:"file"`
	SignalBackend string `env:"EVENTRELAY_SIGNAL_BACKEND" envDefault:"file"`
	Codec         string `env:"EVENTRELAY_CODEC"          envDefault:"json"`

	// FileLock enables cross-process flock around file store operations.
	FileLock bool `env:"EVENTRELAY_FILE_LOCK" envDefault:"false"`

	RedisURL string `env:"EVENTRELAY_REDIS_URL" envDefault:"localhost:6379"`

	// SQLitePath defaults to <ContainersRoot>/<AppGroupID>/events.db.
	SQLitePath string `env:"EVENTRELAY_SQLITE_PATH"`

	FileName string `env:"EVENTRELAY_FILE_NAME" envDefault:"analytics-events.cache"`

	SignalDebounce time.Duration `env:"EVENTRELAY_SIGNAL_DEBOUNCE" envDefault:"50ms"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		StoreBackend:   StoreFile,
		SignalBackend:  SignalFile,
		Codec:          "json",
		RedisURL:       "localhost:6379",
		FileName:       "analytics-events.cache",
		SignalDebounce: 50 * time.Millisecond,
	}.WithDefaults()
}

// LoadSettings reads settings from EVENTRELAY_* environment variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s.WithDefaults(), nil
}

// SettingsFromConfig overlays the keys present in c onto base. Absent
// keys keep base's value, so a partial file only changes what it names.
// Start from DefaultSettings or LoadSettings.
func SettingsFromConfig(base Settings, c Config) Settings {
	storeCfg := c.Sub("store")
	signalCfg := c.Sub("signal")

	s := base
	s.AppGroupID = c.String("app_group_id", s.AppGroupID)
	s.ContainersRoot = c.String("containers_root", s.ContainersRoot)
	s.RedisURL = c.String("redis_url", s.RedisURL)
	s.StoreBackend = storeCfg.String("backend", s.StoreBackend)
	s.Codec = storeCfg.String("codec", s.Codec)
	s.FileLock = storeCfg.Bool("file_lock", s.FileLock)
	s.SQLitePath = storeCfg.String("sqlite_path", s.SQLitePath)
	s.FileName = storeCfg.String("file_name", s.FileName)
	s.SignalBackend = signalCfg.String("backend", s.SignalBackend)
	s.SignalDir = signalCfg.String("dir", s.SignalDir)
	s.SignalDebounce = signalCfg.Duration("debounce", s.SignalDebounce)
	return s.Rebase(base)
}

// Rebase re-derives the paths that from derived from its containers root
// and app group, so they follow the values in s. Paths that were set
// explicitly, in from or in s, are kept.
func (s Settings) Rebase(from Settings) Settings {
	if s.SignalDir == from.SignalDir && from.SignalDir == from.defaultSignalDir() {
		s.SignalDir = ""
	}
	if s.SQLitePath == from.SQLitePath && from.SQLitePath == from.defaultSQLitePath() {
		s.SQLitePath = ""
	}
	return s.WithDefaults()
}

// WithDefaults fills the derived paths left empty.
func (s Settings) WithDefaults() Settings {
	if s.ContainersRoot == "" {
		s.ContainersRoot = filepath.Join(os.TempDir(), "eventrelay")
	}
	if s.SignalDir == "" {
		s.SignalDir = s.defaultSignalDir()
	}
	if s.SQLitePath == "" {
		s.SQLitePath = s.defaultSQLitePath()
	}
	return s
}

func (s Settings) defaultSignalDir() string {
	return filepath.Join(s.ContainersRoot, "signals")
}

func (s Settings) defaultSQLitePath() string {
	if s.AppGroupID == "" {
		return ""
	}
	return filepath.Join(s.ContainersRoot, s.AppGroupID, "events.db")
}

// Validate reports unknown backends and codecs.
//
// A missing AppGroupID is not an error here: the store reports it on use.
func (s Settings) Validate() error {
	var errs []error
	switch s.StoreBackend {
	case StoreFile, StoreSQLite, StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", s.StoreBackend))
	}
	switch s.SignalBackend {
	case SignalFile, SignalRedis, SignalLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown signal backend %q", s.SignalBackend))
	}
	switch s.Codec {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", s.Codec))
	}
	if s.StoreBackend == StoreSQLite && s.SQLitePath == "" {
		errs = append(errs, errors.New("sqlite store needs a database path"))
	}
	if s.SignalDebounce < 0 {
		errs = append(errs, fmt.Errorf("negative signal debounce %s", s.SignalDebounce))
	}
	return errors.Join(errs...)
}
