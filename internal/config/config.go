package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Treasury   TreasuryConfig   `mapstructure:"treasury"`
	Roi        RoiConfig        `mapstructure:"roi"`
	Commission CommissionConfig `mapstructure:"commission"`
	Ranks      []RankConfig     `mapstructure:"ranks"`
	Pool       PoolConfig       `mapstructure:"pool"`
	RankCheck  RankCheckConfig  `mapstructure:"rank_check"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Tokens     []string         `mapstructure:"tokens"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type AdminConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	TotpSecret string `mapstructure:"totp_secret"`
}

type TreasuryConfig struct {
	EncryptedKey    string `mapstructure:"encrypted_key"`
	Passphrase      string `mapstructure:"passphrase"`
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	AutoLockMinutes int    `mapstructure:"auto_lock_minutes"`
}

type RoiConfig struct {
	DailyRateBps       int64  `mapstructure:"daily_rate_bps"`
	StandardCapPercent int64  `mapstructure:"standard_cap_percent"`
	RankedCapPercent   int64  `mapstructure:"ranked_cap_percent"`
	Cron               string `mapstructure:"cron"`
}

type CommissionConfig struct {
	MaxLevels int `mapstructure:"max_levels"`
	// 层级号为键，YAML数字键经viper落地为字符串
	LevelBps map[string]int64 `mapstructure:"level_bps"`
}

// RateForLevel 返回指定层级的分佣基点，未配置的层级为0
func (c *CommissionConfig) RateForLevel(level int) int64 {
	return c.LevelBps[strconv.Itoa(level)]
}

type RankConfig struct {
	Level              int    `mapstructure:"level"`
	Name               string `mapstructure:"name"`
	RequiredDirects    int    `mapstructure:"required_directs"`
	RequiredDirectRank *int   `mapstructure:"required_direct_rank"`
	MinDeposit         string `mapstructure:"min_deposit"`
	PoolSharePercent   int64  `mapstructure:"pool_share_percent"`
}

type PoolConfig struct {
	RateBps int64  `mapstructure:"rate_bps"`
	Cron    string `mapstructure:"cron"`
}

type RankCheckConfig struct {
	Cron string `mapstructure:"cron"`
}

type QueueConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	MaxAttempts         int `mapstructure:"max_attempts"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("tokens", []string{"USDT", "ETH"})
	v.SetDefault("roi.daily_rate_bps", 30)
	v.SetDefault("roi.standard_cap_percent", 200)
	v.SetDefault("roi.ranked_cap_percent", 300)
	v.SetDefault("roi.cron", "0 5 0 * * *")
	v.SetDefault("commission.max_levels", 7)
	v.SetDefault("pool.rate_bps", 30)
	v.SetDefault("pool.cron", "0 0 0 * * 1")
	v.SetDefault("rank_check.cron", "0 0 * * * *")
	v.SetDefault("queue.poll_interval_seconds", 5)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("treasury.auto_lock_minutes", 5)
}

// Validate 缺少关键配置时拒绝启动
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and dbname are required")
	}
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	if c.Admin.SecretKey == "" {
		return fmt.Errorf("admin.secret_key is required")
	}
	if c.Treasury.EncryptedKey == "" || c.Treasury.Passphrase == "" {
		return fmt.Errorf("treasury.encrypted_key and treasury.passphrase are required")
	}
	return nil
}

// RankByLevel 按层级查找 rank 配置
func (c *Config) RankByLevel(level int) (*RankConfig, bool) {
	for i := range c.Ranks {
		if c.Ranks[i].Level == level {
			return &c.Ranks[i], true
		}
	}
	return nil, false
}

// IsTokenSupported 是否为支持的代币
func (c *Config) IsTokenSupported(symbol string) bool {
	for _, t := range c.Tokens {
		if t == symbol {
			return true
		}
	}
	return false
}
