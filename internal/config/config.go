package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort  string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis     Redis     `yaml:"redis"`
	Auth      Auth      `yaml:"auth"`
	Platform  Platform  `yaml:"platform"`
	Websocket Websocket `yaml:"websocket"`
}

// Redis is the storage of reports the platform rejected. Disabled means rejected reports are only logged.
type Redis struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Auth struct {
	JWKSURL          string        `yaml:"jwks-url" env:"AUTH_JWKS_URL"`
	Audience         string        `yaml:"audience" env:"AUTH_AUDIENCE"`
	VerifyExpiration bool          `yaml:"verify-expiration" env:"AUTH_VERIFY_EXPIRATION" env-default:"true"`
	KeysThrottle     time.Duration `yaml:"keys-throttle" env:"AUTH_KEYS_THROTTLE" env-default:"5s"`
}

type Platform struct {
	URL     string        `yaml:"url" env:"PLATFORM_URL"`
	APIKey  string        `yaml:"api-key" env:"PLATFORM_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"PLATFORM_TIMEOUT" env-default:"10s"`
}

type Websocket struct {
	SendBuffer int           `yaml:"send-buffer" env:"WS_SEND_BUFFER" env-default:"64"`
	WriteWait  time.Duration `yaml:"write-wait" env:"WS_WRITE_WAIT" env-default:"10s"`
	PongWait   time.Duration `yaml:"pong-wait" env:"WS_PONG_WAIT" env-default:"60s"`
}

// MustLoad - load all configurations in config.yml file, env variables take precedence.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
