package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AGIConfig 定义 FastAGI 服务器的监听配置参数
type AGIConfig struct {
	Host              string // 监听地址，默认 "0.0.0.0"
	Port              int    // 监听端口，默认 4573（FastAGI 标准端口）
	MaxCallsPerSecond int    // 每秒最多接受的新呼叫数
}

// HTTPConfig 定义运维 HTTP 服务器（健康检查/指标/管理接口）的配置
type HTTPConfig struct {
	Host       string // 监听地址，默认 "0.0.0.0"
	Port       int    // 监听端口，默认 8080
	AdminToken string // 管理接口的 X-API-Key 令牌，留空则禁用管理接口
}

// TelephonyConfig 定义按键采集的超时与重试策略
type TelephonyConfig struct {
	DigitTimeout   time.Duration // 首次采集信箱号的超时，默认 1s
	RetryTimeout   time.Duration // 静默重试采集的超时，默认 2s
	PinTimeout     time.Duration // PIN 采集超时，默认 2s
	GuestTimeout   time.Duration // 访客分享码采集超时，默认 5s
	MaxPinAttempts int           // PIN 采集最大重试次数，默认 3
}

// SandboxConfig 定义沙箱重置时的演示数据
type SandboxConfig struct {
	SeedPins       map[int]string // 重置后播种的信箱 PIN，格式 "信箱号:PIN"
	ContentMailbox int            // 持有语音留言内容的演示信箱号
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空则只输出到控制台
}

// StorageConfig 定义凭证存储后端配置
type StorageConfig struct {
	Type string // 存储类型: "memory"（默认，开发用）或 "redis"
}

// RedisConfig 定义 Redis 凭证存储配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// CORSConfig 定义管理接口的跨域配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	AGI       AGIConfig       // FastAGI 服务器配置
	HTTP      HTTPConfig      // 运维 HTTP 服务器配置
	Telephony TelephonyConfig // 按键采集配置
	Sandbox   SandboxConfig   // 沙箱演示数据配置
	Log       LogConfig       // 日志配置
	Storage   StorageConfig   // 存储后端配置
	Redis     RedisConfig     // Redis 配置
	CORS      CORSConfig      // 跨域配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: VOICEBOX_
// 例如: VOICEBOX_AGI_PORT, VOICEBOX_REDIS_ADDRESS
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("voicebox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("agi.host", "0.0.0.0")
	viper.SetDefault("agi.port", 4573)
	viper.SetDefault("agi.max_calls_per_second", 20)
	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.admin_token", "")
	viper.SetDefault("telephony.digit_timeout", "1s")
	viper.SetDefault("telephony.retry_timeout", "2s")
	viper.SetDefault("telephony.pin_timeout", "2s")
	viper.SetDefault("telephony.guest_timeout", "5s")
	viper.SetDefault("telephony.max_pin_attempts", 3)
	viper.SetDefault("sandbox.seed_pins", "2:7319,5:2442")
	viper.SetDefault("sandbox.content_mailbox", 2)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cors.allowed_origins", "*")

	digitTimeout, err := parseDuration("telephony.digit_timeout")
	if err != nil {
		return nil, err
	}
	retryTimeout, err := parseDuration("telephony.retry_timeout")
	if err != nil {
		return nil, err
	}
	pinTimeout, err := parseDuration("telephony.pin_timeout")
	if err != nil {
		return nil, err
	}
	guestTimeout, err := parseDuration("telephony.guest_timeout")
	if err != nil {
		return nil, err
	}

	maxPinAttempts := viper.GetInt("telephony.max_pin_attempts")
	if maxPinAttempts <= 0 {
		maxPinAttempts = 3
	}

	seedPins, err := parseSeedPins(viper.GetString("sandbox.seed_pins"))
	if err != nil {
		return nil, err
	}

	contentMailbox := viper.GetInt("sandbox.content_mailbox")
	if contentMailbox < 0 {
		return nil, fmt.Errorf("sandbox.content_mailbox must not be negative")
	}

	storageType := strings.ToLower(viper.GetString("storage.type"))
	if storageType != "memory" && storageType != "redis" {
		return nil, fmt.Errorf("unsupported storage.type %q (expected memory or redis)", storageType)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		AGI: AGIConfig{
			Host:              viper.GetString("agi.host"),
			Port:              viper.GetInt("agi.port"),
			MaxCallsPerSecond: viper.GetInt("agi.max_calls_per_second"),
		},
		HTTP: HTTPConfig{
			Host:       viper.GetString("http.host"),
			Port:       viper.GetInt("http.port"),
			AdminToken: viper.GetString("http.admin_token"),
		},
		Telephony: TelephonyConfig{
			DigitTimeout:   digitTimeout,
			RetryTimeout:   retryTimeout,
			PinTimeout:     pinTimeout,
			GuestTimeout:   guestTimeout,
			MaxPinAttempts: maxPinAttempts,
		},
		Sandbox: SandboxConfig{
			SeedPins:       seedPins,
			ContentMailbox: contentMailbox,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
		},
		Storage: StorageConfig{
			Type: storageType,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
	}

	return cfg, nil
}

// SeedMailboxes 返回按升序排列的播种信箱号，便于日志与测试输出稳定。
func (c SandboxConfig) SeedMailboxes() []int {
	out := make([]int, 0, len(c.SeedPins))
	for mailbox := range c.SeedPins {
		out = append(out, mailbox)
	}
	sort.Ints(out)
	return out
}

// parseDuration 读取并解析一个时长型配置项。
func parseDuration(key string) (time.Duration, error) {
	value, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}

// parseSeedPins 解析 "信箱号:PIN" 逗号分隔列表，如 "2:7319,5:2442"。
func parseSeedPins(value string) (map[int]string, error) {
	out := make(map[int]string)
	for _, item := range parseList(value) {
		mailboxStr, pin, found := strings.Cut(item, ":")
		if !found {
			return nil, fmt.Errorf("invalid sandbox.seed_pins entry %q (expected mailbox:pin)", item)
		}
		mailbox, err := strconv.Atoi(strings.TrimSpace(mailboxStr))
		if err != nil || mailbox <= 0 {
			return nil, fmt.Errorf("invalid mailbox number in sandbox.seed_pins entry %q", item)
		}
		pin = strings.TrimSpace(pin)
		if len(pin) != 4 {
			return nil, fmt.Errorf("invalid PIN in sandbox.seed_pins entry %q (expected 4 digits)", item)
		}
		for _, r := range pin {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("invalid PIN in sandbox.seed_pins entry %q (expected 4 digits)", item)
			}
		}
		out[mailbox] = pin
	}
	return out, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 backend/ 子目录运行时）
//
// 如果文件不存在则静默失败，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
