// Package config содержит логику чтения конфигурации процессов сервиса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
)

// WorkerConfig содержит параметры процесса обработки очереди.
type WorkerConfig struct {
	RunAddress       string        `env:"RUN_ADDRESS"`
	DatabaseURI      string        `env:"DATABASE_URI"`
	DailyBudgetTotal float64       `env:"DAILY_BUDGET_TOTAL"`
	OWMKeyPath       string        `env:"OWM_KEY_PATH"`
	OWMBaseURL       string        `env:"OWM_BASE_URL"`
	WeatherTimeout   time.Duration `env:"WEATHER_TIMEOUT"`
	PollInterval     time.Duration `env:"POLL_INTERVAL"`
	ErrorBackoff     time.Duration `env:"ERROR_BACKOFF"`
	AuditInterval    time.Duration `env:"AUDIT_INTERVAL"`
}

// APIConfig содержит параметры процесса приёма команд и чтения проекций.
type APIConfig struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
}

// ParseWorker считывает конфигурацию обработчика из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func ParseWorker() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:3001", "address and port for metrics/health HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.Float64Var(&cfg.DailyBudgetTotal, "b", 1000, "daily risk budget total")
	flag.StringVar(&cfg.OWMKeyPath, "k", "/run/secrets/owm_api_key", "path to OpenWeatherMap API key secret")
	flag.StringVar(&cfg.OWMBaseURL, "w", "https://api.openweathermap.org", "OpenWeatherMap base URL")
	flag.DurationVar(&cfg.WeatherTimeout, "weather-timeout", 10*time.Second, "weather request timeout")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", 700*time.Millisecond, "pause after an empty claim")
	flag.DurationVar(&cfg.ErrorBackoff, "error-backoff", 1200*time.Millisecond, "pause after a loop error")
	flag.DurationVar(&cfg.AuditInterval, "audit-interval", 5*time.Minute, "ledger audit period, 0 disables")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if math.IsNaN(cfg.DailyBudgetTotal) || math.IsInf(cfg.DailyBudgetTotal, 0) || cfg.DailyBudgetTotal < 0 {
		return nil, errors.New("daily budget total must be a finite non-negative number")
	}
	if cfg.WeatherTimeout <= 0 {
		return nil, errors.New("weather timeout must be positive")
	}
	if cfg.AuditInterval < 0 {
		return nil, errors.New("audit interval must not be negative")
	}

	return cfg, nil
}

// ParseAPI считывает конфигурацию API из флагов командной строки и переменных окружения.
func ParseAPI() (*APIConfig, error) {
	cfg := &APIConfig{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:3000", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:3000"
	}

	return cfg, nil
}
