package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 支持 "30s"、"5m" 这类写法的时长配置项
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("解析时长失败: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转换为标准库时长
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	LLM struct {
		APIURL  string   `yaml:"api_url"`
		APIKey  string   `yaml:"api_key"`
		Model   string   `yaml:"model"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Database struct {
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"database"`

	NATS struct {
		URL         string `yaml:"url"`
		ClusterID   string `yaml:"cluster_id"`
		ClientID    string `yaml:"client_id"`
		ChatSubject string `yaml:"chat_subject"` // 平台桥接器推送聊天消息的主题
	} `yaml:"nats"`

	API struct {
		Port         string   `yaml:"port"`
		ReadTimeout  Duration `yaml:"read_timeout"`
		WriteTimeout Duration `yaml:"write_timeout"`
	} `yaml:"api"`

	Pipeline struct {
		Workers      int      `yaml:"workers"`       // 并发处理的消息数上限
		BatchSize    int      `yaml:"batch_size"`    // 每轮拉取的未处理消息数
		MaxRetries   int      `yaml:"max_retries"`   // 后端不可用时的重试次数
		RetryBackoff Duration `yaml:"retry_backoff"` // 首次重试等待，之后指数增长
		CronSpec     string   `yaml:"cron_spec"`     // 定时批处理表达式，空则不启用
	} `yaml:"pipeline"`

	Validator struct {
		SymbolPattern   string  `yaml:"symbol_pattern"`
		MinPrice        float64 `yaml:"min_price"`
		MaxPrice        float64 `yaml:"max_price"`
		MinConfidence   float64 `yaml:"min_confidence"`
		HighConfidence  float64 `yaml:"high_confidence"`
		ConfidenceBonus float64 `yaml:"confidence_bonus"`
	} `yaml:"validator"`

	Dedup struct {
		Window Duration `yaml:"window"` // 时间桶宽度，同一窗口内的重复喊单视为同一事实
	} `yaml:"dedup"`
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 环境变量覆盖
	overrideFromEnv(&config)

	// 填充缺省值
	applyDefaults(&config)

	return &config, nil
}

// Default 返回全默认值配置（测试和本地试运行用）
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// applyDefaults 填充未设置的配置项
func applyDefaults(config *Config) {
	if config.LLM.Timeout <= 0 {
		config.LLM.Timeout = Duration(30 * time.Second)
	}
	if config.NATS.ChatSubject == "" {
		config.NATS.ChatSubject = "messages.chat"
	}
	if config.Pipeline.Workers <= 0 {
		config.Pipeline.Workers = 4
	}
	if config.Pipeline.BatchSize <= 0 {
		config.Pipeline.BatchSize = 200
	}
	if config.Pipeline.MaxRetries <= 0 {
		config.Pipeline.MaxRetries = 3
	}
	if config.Pipeline.RetryBackoff <= 0 {
		config.Pipeline.RetryBackoff = Duration(2 * time.Second)
	}
	if config.Validator.SymbolPattern == "" {
		config.Validator.SymbolPattern = `^[A-Z0-9]{1,6}(\.[A-Z]{1,3})?$`
	}
	if config.Validator.MinPrice <= 0 {
		config.Validator.MinPrice = 0.01
	}
	if config.Validator.MaxPrice <= 0 {
		config.Validator.MaxPrice = 1000000
	}
	if config.Validator.MinConfidence <= 0 {
		config.Validator.MinConfidence = 0.5
	}
	if config.Validator.HighConfidence <= 0 {
		config.Validator.HighConfidence = 0.85
	}
	if config.Validator.ConfidenceBonus <= 0 {
		config.Validator.ConfidenceBonus = 0.05
	}
	if config.Dedup.Window <= 0 {
		config.Dedup.Window = Duration(24 * time.Hour)
	}
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	// 应用名称
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}

	// 环境
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 大模型配置
	if env := os.Getenv("LLM_API_URL"); env != "" {
		config.LLM.APIURL = env
	}
	if env := os.Getenv("LLM_API_KEY"); env != "" {
		config.LLM.APIKey = env
	}
	if env := os.Getenv("LLM_MODEL"); env != "" {
		config.LLM.Model = env
	}

	// 数据库配置
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Postgres.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		var port int
		fmt.Sscanf(env, "%d", &port)
		if port > 0 {
			config.Database.Postgres.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.Postgres.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Postgres.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.Postgres.DBName = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLUSTER_ID"); env != "" {
		config.NATS.ClusterID = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
