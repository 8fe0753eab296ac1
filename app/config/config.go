package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log    Log    `yaml:"log"`
	DB     DB     `yaml:"db"`
	OpenAI OpenAI `yaml:"openai"`
	Engine Engine `yaml:"engine"`
	API    API    `yaml:"api"`
}

type OpenAI struct {
	Classifier ModelConfig `yaml:"classifier" validate:"required"`
	Reply      ModelConfig `yaml:"reply" validate:"required"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"mistralai/mistral-7b-instruct:free" validate:"required"`
}

type Engine struct {
	// Trailing journal window for emotion streak detection, in days
	JournalWindowDays int `yaml:"journal_window_days" example:"14"`
	// Trailing chat window for stress keyword detection, in days
	ChatWindowDays int `yaml:"chat_window_days" example:"7"`
	// Interval between extraction sweeps
	SweepInterval time.Duration `yaml:"sweep_interval" example:"1h"`
}

type API struct {
	// HTTP listen address
	Listen string `yaml:"listen" example:":8080"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Postgres username
	User string `yaml:"user" example:"postgres"`
	// Postgres password
	Pass string `yaml:"pass"`
	// Postgres host
	Host string `yaml:"host"  example:"localhost:5432"`
	// Postgres database name
	Database string `yaml:"database" example:"moodmate"`
	// Use the in-process store instead of Postgres (single instance deployments)
	UseMemory bool `yaml:"use_memory" example:"false"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.DB.User == "" {
		result.DB.User = "postgres"
	}
	if result.DB.Pass == "" {
		result.DB.Pass = "postgres"
	}
	if result.DB.Host == "" {
		result.DB.Host = "localhost:5432"
	}
	if result.DB.Database == "" {
		result.DB.Database = "moodmate"
	}
	if result.Engine.JournalWindowDays == 0 {
		result.Engine.JournalWindowDays = 14
	}
	if result.Engine.ChatWindowDays == 0 {
		result.Engine.ChatWindowDays = 7
	}
	if result.Engine.SweepInterval == 0 {
		result.Engine.SweepInterval = time.Hour
	}
	if result.API.Listen == "" {
		result.API.Listen = ":8080"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
