package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

// DefaultVAPIDSubject is used when no explicit subject is configured.
const DefaultVAPIDSubject = "mailto:push@webpushd.dev"

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	VAPIDPublicKey    string `env:"VAPID_PUBLIC_KEY,required=true"`
	VAPIDPrivateKey   string `env:"VAPID_PRIVATE_KEY,required=true"`
	VAPIDSubject      string `env:"VAPID_SUBJECT,default=mailto:push@webpushd.dev"`
	PushTimeoutSec    int    `env:"PUSH_TIMEOUT_SEC,default=10"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	FanoutConcurrency int    `env:"FANOUT_CONCURRENCY,default=8"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
