package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Casino   CasinoConfig   `mapstructure:"casino"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	GatewayToken    string        `mapstructure:"gateway_token"` // 聊天网关共享令牌，为空时不校验
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// CasinoConfig 游戏规则配置
type CasinoConfig struct {
	StartBalance      int64                `mapstructure:"start_balance"`
	DailyBonus        int64                `mapstructure:"daily_bonus"`
	MinBet            int64                `mapstructure:"min_bet"`
	MaxBet            int64                `mapstructure:"max_bet"`
	MaxGamesPerMinute int                  `mapstructure:"max_games_per_minute"`
	RefundOnCancel    bool                 `mapstructure:"refund_on_cancel"`
	Timezone          string               `mapstructure:"timezone"`
	LeaderboardSize   int                  `mapstructure:"leaderboard_size"`
	HistorySize       int                  `mapstructure:"history_size"`
	Payouts           PayoutConfig         `mapstructure:"payouts"`
	DefaultPromos     map[string]PromoSeed `mapstructure:"default_promos"`
	AntiCheat         AntiCheatConfig      `mapstructure:"anti_cheat"`
}

// PayoutConfig 赔率表
type PayoutConfig struct {
	CoinFlip       float64 `mapstructure:"coinflip"`
	DiceSix        float64 `mapstructure:"dice_six"`
	DiceHigh       float64 `mapstructure:"dice_high"`
	SlotsTriple    float64 `mapstructure:"slots_triple"`
	SlotsPair      float64 `mapstructure:"slots_pair"`
	RouletteNumber float64 `mapstructure:"roulette_number"`
	RouletteColor  float64 `mapstructure:"roulette_color"`
	RouletteParity float64 `mapstructure:"roulette_parity"`
	BlackjackWin   float64 `mapstructure:"blackjack_win"`
	BlackjackPush  float64 `mapstructure:"blackjack_push"`
}

// PromoSeed 默认促销码
type PromoSeed struct {
	Reward  int64 `mapstructure:"reward"`
	MaxUses int64 `mapstructure:"max_uses"`
}

// AntiCheatConfig 胜率监控配置（仅用于报表）
type AntiCheatConfig struct {
	MaxWinRate float64 `mapstructure:"max_win_rate"`
	MinGames   int64   `mapstructure:"min_games"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// BackupConfig 备份配置
type BackupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Path     string        `mapstructure:"path"`
	Keep     int           `mapstructure:"keep"`
	S3       S3Config      `mapstructure:"s3"`
}

// S3Config 对象存储配置（兼容 S3 的任意服务）
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// AdminConfig 管理接口配置
type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = newViper(configPath)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			return
		}
		if err = loaded.Validate(); err != nil {
			return
		}
		cfg = loaded
	})

	return err
}

// Default 返回仅由默认值构成的配置，不读取文件和环境变量
func Default() *Config {
	dv := viper.New()
	setDefaults(dv)
	c := &Config{}
	if err := dv.Unmarshal(c); err != nil {
		panic(fmt.Sprintf("默认配置无法解析: %v", err))
	}
	return c
}

func newViper(configPath string) *viper.Viper {
	nv := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath("./config")
		nv.AddConfigPath(".")
	}

	// 设置环境变量前缀
	nv.SetEnvPrefix("CASINO")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv)
	return nv
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.gateway_token", "")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/casino.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "casino.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 游戏规则
	v.SetDefault("casino.start_balance", 1000)
	v.SetDefault("casino.daily_bonus", 500)
	v.SetDefault("casino.min_bet", 100)
	v.SetDefault("casino.max_bet", 10000)
	v.SetDefault("casino.max_games_per_minute", 10)
	v.SetDefault("casino.refund_on_cancel", false)
	v.SetDefault("casino.timezone", "UTC")
	v.SetDefault("casino.leaderboard_size", 10)
	v.SetDefault("casino.history_size", 10)
	v.SetDefault("casino.payouts.coinflip", 2.0)
	v.SetDefault("casino.payouts.dice_six", 5.0)
	v.SetDefault("casino.payouts.dice_high", 2.0)
	v.SetDefault("casino.payouts.slots_triple", 10.0)
	v.SetDefault("casino.payouts.slots_pair", 3.0)
	v.SetDefault("casino.payouts.roulette_number", 36.0)
	v.SetDefault("casino.payouts.roulette_color", 2.0)
	v.SetDefault("casino.payouts.roulette_parity", 2.0)
	v.SetDefault("casino.payouts.blackjack_win", 2.0)
	v.SetDefault("casino.payouts.blackjack_push", 1.0)
	v.SetDefault("casino.default_promos", map[string]interface{}{
		"START2024": map[string]interface{}{"reward": 1000, "max_uses": 1000},
		"WELCOME":   map[string]interface{}{"reward": 500, "max_uses": 500},
		"LUCKY777":  map[string]interface{}{"reward": 777, "max_uses": 77},
		"BIGBONUS":  map[string]interface{}{"reward": 2000, "max_uses": 100},
		"NEWBIE":    map[string]interface{}{"reward": 1500, "max_uses": 200},
		"WEEKEND":   map[string]interface{}{"reward": 800, "max_uses": 300},
		"SLOTS":     map[string]interface{}{"reward": 600, "max_uses": 150},
		"ROULETTE":  map[string]interface{}{"reward": 900, "max_uses": 150},
		"PREMIUM":   map[string]interface{}{"reward": 5000, "max_uses": 50},
	})
	v.SetDefault("casino.anti_cheat.max_win_rate", 0.8)
	v.SetDefault("casino.anti_cheat.min_games", 20)

	// 会话
	v.SetDefault("session.idle_timeout", "15m")
	v.SetDefault("session.sweep_interval", "1m")

	// Redis（限流）
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "casino")

	// 备份
	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.interval", "6h")
	v.SetDefault("backup.path", "./backups")
	v.SetDefault("backup.keep", 14)
	v.SetDefault("backup.s3.enabled", false)
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "auto")
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.access_key_id", "")
	v.SetDefault("backup.s3.secret_access_key", "")
	v.SetDefault("backup.s3.prefix", "casino-backups")

	// 管理接口
	v.SetDefault("admin.username", "admin")
	// 敏感项默认为空，只为让同名环境变量生效
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", "12h")
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	if c.Casino.MinBet <= 0 {
		return fmt.Errorf("casino.min_bet 必须大于0: %d", c.Casino.MinBet)
	}
	if c.Casino.MaxBet < c.Casino.MinBet {
		return fmt.Errorf("casino.max_bet(%d) 不能小于 casino.min_bet(%d)", c.Casino.MaxBet, c.Casino.MinBet)
	}
	if c.Casino.StartBalance < 0 || c.Casino.DailyBonus < 0 {
		return fmt.Errorf("casino.start_balance 和 casino.daily_bonus 不能为负数")
	}
	if _, err := time.LoadLocation(c.Casino.Timezone); err != nil {
		return fmt.Errorf("无效的时区 %q: %w", c.Casino.Timezone, err)
	}
	for code, seed := range c.Casino.DefaultPromos {
		if seed.Reward <= 0 || seed.MaxUses <= 0 {
			return fmt.Errorf("默认促销码 %s 的 reward/max_uses 必须大于0", code)
		}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	return nil
}

// Location 返回计算每日奖励日期所用的时区
func (c *CasinoConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
// 游戏规则在启动后保持不变，热加载只下发日志级别
func Watch(callback func(level string)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		mu.Lock()
		changed := cfg != nil && cfg.Log.Level != newCfg.Log.Level
		if changed {
			next := *cfg
			next.Log.Level = newCfg.Log.Level
			cfg = &next
		}
		mu.Unlock()

		if changed && callback != nil {
			callback(newCfg.Log.Level)
		}
		fmt.Printf("配置文件已变更: %s\n", e.Name)
	})
}
