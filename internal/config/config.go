package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverMongo  = "mongodb"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Password PasswordConfig `yaml:"password"`
	S3       S3Config       `yaml:"s3"`
	Uploads  UploadsConfig  `yaml:"uploads"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN"`
	SecureCookies   bool          `yaml:"secure_cookies" env:"SECURE_COOKIES" env-default:"true"`
	BodyLimit       int64         `yaml:"body_limit" env-default:"16384"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongodb"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./storage/vidtube.db"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"vidtube"`
}

type TokensConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_EXPIRY" env-default:"240h"`
}

type PasswordConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

type S3Config struct {
	Region       string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint     string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"S3_BUCKET" env-default:"vidtube"`
	AccessKey    string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	PublicURL    string `yaml:"public_url" env:"S3_PUBLIC_URL"`
	UsePathStyle bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"true"`
}

type UploadsConfig struct {
	TempDir string `yaml:"temp_dir" env:"UPLOADS_TEMP_DIR" env-default:"./public/temp"`
	MaxSize int64  `yaml:"max_size" env-default:"10485760"`
}

var (
	ErrMissingSecret  = errors.New("token secrets are required")
	ErrSameSecrets    = errors.New("access and refresh secrets must differ")
	ErrInvalidTTL     = errors.New("token ttl must be positive and refresh ttl longer than access ttl")
	ErrInvalidCost    = errors.New("bcrypt cost out of range")
	ErrUnknownDriver  = errors.New("unknown storage driver")
	ErrConfigNotFound = errors.New("config file not found")
)

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	t := c.Tokens
	switch {
	case t.AccessSecret == "" || t.RefreshSecret == "":
		return ErrMissingSecret
	case t.AccessSecret == t.RefreshSecret:
		return ErrSameSecrets
	case t.AccessTTL <= 0 || t.RefreshTTL <= t.AccessTTL:
		return ErrInvalidTTL
	}

	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d", ErrInvalidCost, c.Password.BcryptCost)
	}

	switch c.Storage.Driver {
	case DriverMongo, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}

	return nil
}

// FetchConfigPath returns the -config flag value, falling back to CONFIG_PATH.
// It parses the default flag set, so call it once from main.
func FetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
