package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 儲存警報代理程式及外部相依的執行設定。
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Alert    AlertConfig    `yaml:"alert"`
	Data     DataConfig     `yaml:"data"`
	DB       DBConfig       `yaml:"db"`
	LLM      LLMConfig      `yaml:"llm"`
	Notifier NotifierConfig `yaml:"notifier"`
	Recorder RecorderConfig `yaml:"recorder"`
}

type AgentConfig struct {
	Symbols       []string      `yaml:"symbols"`
	WatchInterval time.Duration `yaml:"watch_interval"`
	ForecastDays  int           `yaml:"forecast_window"`
}

// AlertConfig 指定門檻組合：以 preset 為底，個別欄位非零時覆寫。
type AlertConfig struct {
	Preset              string        `yaml:"preset"`
	PriceDropThreshold  float64       `yaml:"price_drop_threshold"`
	PriceSpikeThreshold float64       `yaml:"price_spike_threshold"`
	VolatilityThreshold float64       `yaml:"volatility_threshold"`
	Cooldown            time.Duration `yaml:"cooldown"`
	DailyLimit          int           `yaml:"daily_limit"`
}

type DataConfig struct {
	Source  string `yaml:"source"` // csv、alpaca 或 binance
	CSVPath string `yaml:"csv_path"`
}

type DBConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxIdleTime  time.Duration `yaml:"max_idle_time"`
}

type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

type NotifierConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type RecorderConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LoadFromFile 從 YAML 組態檔載入設定。
func LoadFromFile(path string) (Config, error) {
	// 嘗試載入 .env 檔案（如果存在）
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg = applyEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	if len(cfg.Agent.Symbols) == 0 {
		cfg.Agent.Symbols = []string{"SAMPLE"}
	}
	if cfg.Agent.WatchInterval == 0 {
		cfg.Agent.WatchInterval = time.Hour
	}
	if cfg.Agent.ForecastDays == 0 {
		cfg.Agent.ForecastDays = 10
	}
	if cfg.Alert.Preset == "" {
		cfg.Alert.Preset = "moderate"
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "csv"
	}
	if cfg.Data.CSVPath == "" {
		cfg.Data.CSVPath = "data/sample_stock_data.csv"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.DB.MaxIdleTime == 0 {
		cfg.DB.MaxIdleTime = 15 * time.Minute
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.Recorder.OutputDir == "" {
		cfg.Recorder.OutputDir = "outputs"
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if val := os.Getenv("AGENT_SYMBOLS"); val != "" {
		cfg.Agent.Symbols = splitSymbols(val)
	}
	if val := os.Getenv("WATCH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Agent.WatchInterval = d
		}
	}
	if val := os.Getenv("ALERT_PRESET"); val != "" {
		cfg.Alert.Preset = val
	}
	if val := os.Getenv("ALERT_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Alert.Cooldown = d
		}
	}
	if val := os.Getenv("DATA_SOURCE"); val != "" {
		cfg.Data.Source = val
	}
	if val := os.Getenv("DATA_CSV_PATH"); val != "" {
		cfg.Data.CSVPath = val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DB.DSN = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		cfg.LLM.APIKey = val
	}
	if val := os.Getenv("LLM_ENABLED"); val != "" {
		cfg.LLM.Enabled = (val == "true")
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		cfg.LLM.Model = val
	}
	if val := os.Getenv("TELEGRAM_TOKEN"); val != "" {
		cfg.Notifier.Telegram.Token = val
	}
	if val := os.Getenv("TELEGRAM_CHAT_ID"); val != "" {
		if id, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Notifier.Telegram.ChatID = id
		}
	}
	if val := os.Getenv("TELEGRAM_ENABLED"); val != "" {
		cfg.Notifier.Telegram.Enabled = (val == "true")
	}
	if val := os.Getenv("OUTPUT_DIR"); val != "" {
		cfg.Recorder.OutputDir = val
	}
	return cfg
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
