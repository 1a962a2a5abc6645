package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	PricingURL  string `env:"PRICING_URL" envDefault:"http://localhost:5173/pricing"`

	Database Database `envPrefix:"DATABASE_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Storage  Storage  `envPrefix:"STORAGE_"`
	Worker   Worker   `envPrefix:"WORKER_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"mysql"` // mysql | sqlite
	URL    string `env:"URL"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	TrialDays     int64  `env:"TRIAL_DAYS" envDefault:"7"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Redis struct {
	URL            string        `env:"URL"`
	EntitlementTTL time.Duration `env:"ENTITLEMENT_TTL" envDefault:"5m"`
}

type Storage struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	EndpointURL     string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

type Worker struct {
	Concurrency  int           `env:"CONCURRENCY" envDefault:"4"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"8"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	BaseBackoff  time.Duration `env:"BASE_BACKOFF" envDefault:"2s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
