package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KnownStrategies 支持的决策策略名称
var KnownStrategies = []string{"simple", "unfiltered", "filtered"}

// AccountConfig 账户配置（主账户与从账户共用）
type AccountConfig struct {
	Name      string `yaml:"name" json:"name"`
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
}

// HasCredentials 是否已配置 API 凭证
func (a AccountConfig) HasCredentials() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// StrategyConfig 跟单决策策略配置
type StrategyConfig struct {
	Name            string   `yaml:"name" json:"name"`                         // simple / unfiltered / filtered
	TraderID        int      `yaml:"trader_id" json:"trader_id"`               // 信号来源标识
	MinNotional     float64  `yaml:"min_notional" json:"min_notional"`         // 最小名义价值（数量×价格），0 表示不限制
	AllowedSymbols  []string `yaml:"allowed_symbols" json:"allowed_symbols"`   // 白名单，为空表示全部允许
	ExcludedSymbols []string `yaml:"excluded_symbols" json:"excluded_symbols"` // 黑名单，优先于白名单
}

// ExchangeConfig 交易所 REST 配置
type ExchangeConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	RetryCount     int    `yaml:"retry_count" json:"retry_count"` // 仅对查询类请求重试
	OpenType       int    `yaml:"open_type" json:"open_type"`     // 1=逐仓 2=全仓
	Leverage       int    `yaml:"leverage" json:"leverage"`       // 逐仓时必填
}

// ControlPlaneConfig 控制面 HTTP 配置
type ControlPlaneConfig struct {
	Listen         string   `yaml:"listen" json:"listen"`
	Token          string   `yaml:"token" json:"token"` // 为空则不鉴权
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// SecretStoreConfig 加密凭证存储配置
type SecretStoreConfig struct {
	Path string `yaml:"path" json:"path"` // 为空则不启用
	Key  string `yaml:"-" json:"-"`       // 只从环境变量读取
}

// Config 应用配置
type Config struct {
	Primary  AccountConfig   `yaml:"primary" json:"primary"`
	Accounts []AccountConfig `yaml:"accounts" json:"accounts"`

	Symbol            string  `yaml:"symbol" json:"symbol"`                     // 只跟踪该合约，为空表示全部
	CopyMultiplier    float64 `yaml:"copy_multiplier" json:"copy_multiplier"`   // 从账户下单数量 = 主账户数量 × 倍数
	QuantityPrecision int     `yaml:"quantity_precision" json:"quantity_precision"` // 数量保留小数位（向下取整），-1 表示不处理
	EnableCopying     bool    `yaml:"enable_copying" json:"enable_copying"`
	PollIntervalMs    int     `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	AccountTimeoutMs  int     `yaml:"account_timeout_ms" json:"account_timeout_ms"` // 单账户下单超时，0 表示使用客户端超时
	DryRun            bool    `yaml:"dry_run" json:"dry_run"`                     // 从账户使用纸交易客户端

	Strategy     StrategyConfig     `yaml:"strategy" json:"strategy"`
	Exchange     ExchangeConfig     `yaml:"exchange" json:"exchange"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane" json:"control_plane"`
	SecretStore  SecretStoreConfig  `yaml:"secret_store" json:"secret_store"`

	LedgerPath  string `yaml:"ledger_path" json:"ledger_path"`   // SQLite 文件路径
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"` // 订单快照目录，为空则不持久化

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// PollInterval 轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// AccountTimeout 单账户调用超时
func (c *Config) AccountTimeout() time.Duration {
	return time.Duration(c.AccountTimeoutMs) * time.Millisecond
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Primary:           AccountConfig{Name: "master"},
		CopyMultiplier:    1.0,
		QuantityPrecision: -1,
		EnableCopying:     true,
		PollIntervalMs:    500,
		Strategy:          StrategyConfig{Name: "simple", TraderID: 1},
		Exchange: ExchangeConfig{
			BaseURL:        "https://contract.mexc.com",
			TimeoutSeconds: 10,
			RetryCount:     2,
			OpenType:       2,
		},
		ControlPlane: ControlPlaneConfig{Listen: ":8088"},
		LedgerPath:   "data/copytrade.db",
		SnapshotDir:  "data/snapshots",
		LogLevel:     "info",
		LogFile:      "logs/copytrade.log",
	}
}

// LoadFromFile 从指定文件加载配置，随后应用环境变量覆盖
// filePath 为空时只使用默认值与环境变量
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	normalize(cfg)
	return cfg, nil
}

// loadConfigFile 按扩展名选择 YAML 或 JSON 解析，未出现的字段保留默认值
func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return json.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("不支持的配置文件格式: %s", filepath.Ext(filePath))
	}
}

// applyEnv 环境变量覆盖（凭证类环境变量优先于配置文件）
func applyEnv(cfg *Config) error {
	cfg.Primary.APIKey = getEnv("MASTER_API_KEY", cfg.Primary.APIKey)
	cfg.Primary.APISecret = getEnv("MASTER_API_SECRET", cfg.Primary.APISecret)
	cfg.Primary.Name = getEnv("MASTER_NAME", cfg.Primary.Name)

	if raw := os.Getenv("SLAVE_ACCOUNTS"); raw != "" {
		var accounts []AccountConfig
		if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
			return fmt.Errorf("SLAVE_ACCOUNTS 不是合法的 JSON 数组: %w", err)
		}
		cfg.Accounts = accounts
	}

	cfg.Symbol = getEnv("COPYTRADE_SYMBOL", cfg.Symbol)

	var err error
	if cfg.CopyMultiplier, err = parseFloatEnv("COPY_MULTIPLIER", cfg.CopyMultiplier); err != nil {
		return err
	}
	if cfg.QuantityPrecision, err = parseIntEnv("QUANTITY_PRECISION", cfg.QuantityPrecision); err != nil {
		return err
	}
	if cfg.EnableCopying, err = parseBoolEnv("ENABLE_COPYING", cfg.EnableCopying); err != nil {
		return err
	}
	if cfg.PollIntervalMs, err = parseIntEnv("POLL_INTERVAL_MS", cfg.PollIntervalMs); err != nil {
		return err
	}
	if cfg.AccountTimeoutMs, err = parseIntEnv("ACCOUNT_TIMEOUT_MS", cfg.AccountTimeoutMs); err != nil {
		return err
	}
	if cfg.DryRun, err = parseBoolEnv("DRY_RUN", cfg.DryRun); err != nil {
		return err
	}

	cfg.Strategy.Name = getEnv("COPY_STRATEGY", cfg.Strategy.Name)
	if cfg.Strategy.TraderID, err = parseIntEnv("TRADER_ID", cfg.Strategy.TraderID); err != nil {
		return err
	}
	if cfg.Strategy.MinNotional, err = parseFloatEnv("MIN_TRADE_SIZE", cfg.Strategy.MinNotional); err != nil {
		return err
	}
	if v := os.Getenv("ALLOWED_SYMBOLS"); v != "" {
		cfg.Strategy.AllowedSymbols = parseList(v)
	}
	if v := os.Getenv("EXCLUDED_SYMBOLS"); v != "" {
		cfg.Strategy.ExcludedSymbols = parseList(v)
	}

	cfg.Exchange.BaseURL = getEnv("MEXC_BASE_URL", cfg.Exchange.BaseURL)
	cfg.ControlPlane.Listen = getEnv("COPYTRADE_LISTEN", cfg.ControlPlane.Listen)
	cfg.ControlPlane.Token = getEnv("COPYTRADE_TOKEN", cfg.ControlPlane.Token)
	cfg.SecretStore.Path = getEnv("SECRET_STORE_PATH", cfg.SecretStore.Path)
	cfg.SecretStore.Key = getEnv("SECRET_STORE_KEY", cfg.SecretStore.Key)

	cfg.LedgerPath = getEnv("DATABASE_PATH", cfg.LedgerPath)
	cfg.SnapshotDir = getEnv("SNAPSHOT_DIR", cfg.SnapshotDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	return nil
}

func normalize(cfg *Config) {
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	cfg.Strategy.Name = strings.ToLower(strings.TrimSpace(cfg.Strategy.Name))
	for i := range cfg.Accounts {
		cfg.Accounts[i].Name = strings.TrimSpace(cfg.Accounts[i].Name)
	}
}

// Validate 验证配置（不检查凭证，凭证可能稍后从 secret store 补齐）
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.CopyMultiplier <= 0 {
		return fmt.Errorf("COPY_MULTIPLIER 必须大于 0")
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS 必须大于 0")
	}
	if c.AccountTimeoutMs < 0 {
		return fmt.Errorf("ACCOUNT_TIMEOUT_MS 不能为负数")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("至少需要配置一个从账户")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.Name == "" {
			return fmt.Errorf("第 %d 个从账户缺少 name", i+1)
		}
		if _, dup := seen[acc.Name]; dup {
			return fmt.Errorf("从账户名称重复: %s", acc.Name)
		}
		seen[acc.Name] = struct{}{}
	}
	known := false
	for _, name := range KnownStrategies {
		if c.Strategy.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("未知的跟单策略: %s（可选: %s）", c.Strategy.Name, strings.Join(KnownStrategies, ", "))
	}
	if c.Strategy.MinNotional < 0 {
		return fmt.Errorf("MIN_TRADE_SIZE 不能为负数")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path 不能为空")
	}
	if c.Exchange.OpenType != 1 && c.Exchange.OpenType != 2 {
		return fmt.Errorf("exchange.open_type 只能是 1(逐仓) 或 2(全仓)")
	}
	if c.Exchange.OpenType == 1 && c.Exchange.Leverage <= 0 {
		return fmt.Errorf("逐仓模式必须设置 exchange.leverage")
	}
	return nil
}

// ValidateCredentials 检查凭证是否齐全；纸交易模式下从账户无需凭证
func (c *Config) ValidateCredentials() error {
	if !c.Primary.HasCredentials() {
		return fmt.Errorf("主账户 API 凭证未配置（MASTER_API_KEY / MASTER_API_SECRET）")
	}
	if c.DryRun {
		return nil
	}
	for _, acc := range c.Accounts {
		if !acc.HasCredentials() {
			return fmt.Errorf("从账户 %s 的 API 凭证未配置", acc.Name)
		}
	}
	return nil
}

// parseList 解析逗号分隔列表
func parseList(str string) []string {
	parts := strings.Split(str, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量；未设置时返回默认值，无法解析时报错
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s 不是合法整数 %q: %w", key, value, err)
	}
	return parsed, nil
}

// parseFloatEnv 解析浮点数环境变量；未设置时返回默认值，无法解析时报错
func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s 不是合法数字 %q: %w", key, value, err)
	}
	return parsed, nil
}

// parseBoolEnv 解析布尔环境变量；未设置时返回默认值，无法解析时报错
func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s 不是合法布尔值 %q: %w", key, value, err)
	}
	return parsed, nil
}
