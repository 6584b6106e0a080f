package bot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

var ErrConfigurationMissing = errors.New("configuration missing")

const (
	defaultRefreshIntervalMs = 60000
	defaultDBAddress         = ":5432"
	defaultSQLitePath        = "dashboard.db"
	defaultStatusAddress     = ":42069"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string
	Address  string
	User     string
	Password string
	Name     string
	Path     string
}

// SourceConfig points at one upstream API. A source with an empty URL is
// treated as not configured.
type SourceConfig struct {
	URL       string
	APIKey    string
	MediaType string
}

func (c SourceConfig) Enabled() bool {
	return c.URL != ""
}

type Config struct {
	TelegramBotToken  string
	AdminChatId       int64
	RefreshIntervalMs int64
	Database          DatabaseConfig
	// RedisAddress enables cross-replica event locks when set.
	RedisAddress  string
	StatusAddress string
	Activity      SourceConfig
	QueueA        SourceConfig
	QueueB        SourceConfig
	Downloads     SourceConfig
	Debug         bool
}

// LoadConfig reads a JSON config file. ${VAR} references in the file are
// expanded from the environment so secrets can stay out of it.
func LoadConfig(path string) (Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to read config file %v", path)
	}
	var c Config
	err = json.Unmarshal([]byte(os.ExpandEnv(string(file))), &c)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to unmarshal config file %v", path)
	}
	c.applyDefaults()
	return c, c.Validate()
}

func (c *Config) applyDefaults() {
	if c.RefreshIntervalMs <= 0 {
		c.RefreshIntervalMs = defaultRefreshIntervalMs
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Driver == DriverPostgres && c.Database.Address == "" {
		c.Database.Address = defaultDBAddress
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = defaultSQLitePath
	}
	if c.StatusAddress == "" {
		c.StatusAddress = defaultStatusAddress
	}
	if c.QueueA.MediaType == "" {
		c.QueueA.MediaType = "episode"
	}
	if c.QueueB.MediaType == "" {
		c.QueueB.MediaType = "movie"
	}
}

func (c Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.Wrap(ErrConfigurationMissing, "telegram bot token")
	}
	if c.AdminChatId == 0 {
		return errors.Wrap(ErrConfigurationMissing, "admin chat id")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Name == "" || c.Database.User == "" {
			return errors.Wrap(ErrConfigurationMissing, "postgres database name and user")
		}
	case DriverSQLite:
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}
