// Package config loads dashboard and stub server settings.
//
// 优先级：环境变量 > 配置文件 > 默认值
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADEDASH_"

var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Config 应用配置
type Config struct {
	ServerURL            string
	WSPath               string
	RequestTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int // 0 表示不限
	PingInterval         time.Duration
	ToastDuration        time.Duration
	LogLevel             string
	LogFile              string

	// 以下仅用于 stub server
	ListenAddr        string
	DBPath            string
	BroadcastInterval time.Duration
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ServerURL:         "http://127.0.0.1:5001",
		WSPath:            "/ws",
		RequestTimeout:    30 * time.Second,
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      10 * time.Second,
		ToastDuration:     5 * time.Second,
		LogLevel:          "info",
		LogFile:           "logs/dashboard.log",
		ListenAddr:        ":5001",
		DBPath:            "data/trades.db",
		BroadcastInterval: 5 * time.Second,
	}
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析），缺省字段为 nil
type ConfigFile struct {
	ServerURL            *string `yaml:"server_url" json:"server_url"`
	WSPath               *string `yaml:"ws_path" json:"ws_path"`
	RequestTimeout       *string `yaml:"request_timeout" json:"request_timeout"`
	ReconnectDelay       *string `yaml:"reconnect_delay" json:"reconnect_delay"`
	MaxReconnectDelay    *string `yaml:"max_reconnect_delay" json:"max_reconnect_delay"`
	MaxReconnectAttempts *int    `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
	PingInterval         *string `yaml:"ping_interval" json:"ping_interval"`
	ToastDuration        *string `yaml:"toast_duration" json:"toast_duration"`
	LogLevel             *string `yaml:"log_level" json:"log_level"`
	LogFile              *string `yaml:"log_file" json:"log_file"`
	ListenAddr           *string `yaml:"listen_addr" json:"listen_addr"`
	DBPath               *string `yaml:"db_path" json:"db_path"`
	BroadcastInterval    *string `yaml:"broadcast_interval" json:"broadcast_interval"`
}

// Load 加载配置（使用 SetConfigPath 设置的文件，可为空）
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置。filePath 为空时只使用默认值和环境变量。
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		file, err := loadConfigFile(filePath)
		if err != nil {
			return nil, err
		}
		if err := cfg.applyFile(file); err != nil {
			return nil, fmt.Errorf("配置文件 %s: %w", filePath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return &configFile, nil
}

func (c *Config) applyFile(f *ConfigFile) error {
	setString(&c.ServerURL, f.ServerURL)
	setString(&c.WSPath, f.WSPath)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFile, f.LogFile)
	setString(&c.ListenAddr, f.ListenAddr)
	setString(&c.DBPath, f.DBPath)
	if f.MaxReconnectAttempts != nil {
		c.MaxReconnectAttempts = *f.MaxReconnectAttempts
	}

	durations := []struct {
		name string
		dst  *time.Duration
		src  *string
	}{
		{"request_timeout", &c.RequestTimeout, f.RequestTimeout},
		{"reconnect_delay", &c.ReconnectDelay, f.ReconnectDelay},
		{"max_reconnect_delay", &c.MaxReconnectDelay, f.MaxReconnectDelay},
		{"ping_interval", &c.PingInterval, f.PingInterval},
		{"toast_duration", &c.ToastDuration, f.ToastDuration},
		{"broadcast_interval", &c.BroadcastInterval, f.BroadcastInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.src))
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// applyEnv 环境变量覆盖；无法解析的值忽略
func (c *Config) applyEnv() {
	c.ServerURL = getEnv("SERVER_URL", c.ServerURL)
	c.WSPath = getEnv("WS_PATH", c.WSPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.MaxReconnectAttempts = parseIntEnv("MAX_RECONNECT_ATTEMPTS", c.MaxReconnectAttempts)
	c.RequestTimeout = parseDurationEnv("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ReconnectDelay = parseDurationEnv("RECONNECT_DELAY", c.ReconnectDelay)
	c.MaxReconnectDelay = parseDurationEnv("MAX_RECONNECT_DELAY", c.MaxReconnectDelay)
	c.PingInterval = parseDurationEnv("PING_INTERVAL", c.PingInterval)
	c.ToastDuration = parseDurationEnv("TOAST_DURATION", c.ToastDuration)
	c.BroadcastInterval = parseDurationEnv("BROADCAST_INTERVAL", c.BroadcastInterval)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Validate rejects a bad server URL and negative values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url 无效: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url 必须是 http(s) 地址: %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server_url 缺少主机: %q", c.ServerURL)
	}

	durations := map[string]time.Duration{
		"request_timeout":     c.RequestTimeout,
		"reconnect_delay":     c.ReconnectDelay,
		"max_reconnect_delay": c.MaxReconnectDelay,
		"ping_interval":       c.PingInterval,
		"toast_duration":      c.ToastDuration,
		"broadcast_interval":  c.BroadcastInterval,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s 不能为负数: %s", name, d)
		}
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts 不能为负数: %d", c.MaxReconnectAttempts)
	}
	return nil
}

// WebSocketURL derives the channel URL from ServerURL and WSPath.
func (c *Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	path := c.WSPath
	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
