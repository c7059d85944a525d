package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDb       int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`
	ApplySchema      bool   `env:"APPLY_SCHEMA"      envDefault:"true"`

	// Empty disables the NATS publisher.
	NatsURL string `env:"NATS_URL" validate:"omitempty,url"`

	JwtSecret string `env:"JWT_SECRET" validate:"required,min=16"`

	SweepSchedule       string        `env:"SWEEP_SCHEDULE"        envDefault:"@every 30s"`
	SweepBatch          int           `env:"SWEEP_BATCH"           envDefault:"100" validate:"min=1,max=1000"`
	StatsCacheTTL       time.Duration `env:"STATS_CACHE_TTL"       envDefault:"5m"`
	TimerKeyspaceEvents bool          `env:"TIMER_KEYSPACE_EVENTS" envDefault:"true"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err = validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
