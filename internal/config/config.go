package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level string
	}
	Database struct {
		// Driver is one of memory, sqlite, postgres or mongo.
		Driver string
		Path   string
		URL    string
		Name   string
		Seed   bool
	}
	Storage struct {
		// Driver is local or s3.
		Driver    string
		Dir       string
		BaseURL   string
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Upload struct {
		MaxBytes      int64
		MaxConcurrent int
		CurrentUser   string
	}
	RateLimit struct {
		Requests int
		Window   time.Duration
	}
}

var (
	databaseDrivers = []string{"memory", "sqlite", "postgres", "mongo"}
	storageDrivers  = []string{"local", "s3"}
)

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// .env is optional and never overrides the real environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PETGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.path", "data/petgram.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.name", "petgram")
	v.SetDefault("database.seed", true)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.dir", "data/media")
	v.SetDefault("storage.baseurl", "/media")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "petgram")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("upload.maxbytes", 10<<20)
	v.SetDefault("upload.maxconcurrent", 4)
	v.SetDefault("upload.currentuser", "fluffycat")
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "1m")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if !slices.Contains(databaseDrivers, c.Database.Driver) {
		return fmt.Errorf("unknown database driver %q (want one of %s)", c.Database.Driver, strings.Join(databaseDrivers, ", "))
	}
	if !slices.Contains(storageDrivers, c.Storage.Driver) {
		return fmt.Errorf("unknown storage driver %q (want one of %s)", c.Storage.Driver, strings.Join(storageDrivers, ", "))
	}
	if (c.Database.Driver == "postgres" || c.Database.Driver == "mongo") && c.Database.URL == "" {
		return fmt.Errorf("database url is required for driver %s", c.Database.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required for driver s3")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	return nil
}
