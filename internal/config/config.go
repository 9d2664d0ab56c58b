// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Moderation    ModerationConfig    `mapstructure:"moderation"`
	Leads         LeadsConfig         `mapstructure:"leads"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Mail          MailConfig          `mapstructure:"mail"`
	WhatsApp      WhatsAppConfig      `mapstructure:"whatsapp"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Notification  NotificationConfig  `mapstructure:"notification"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型后端（Anthropic Messages API）的配置。
type LLMConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AssistantConfig 描述助手人设以及注入系统提示的业务事实。
type AssistantConfig struct {
	Name                   string   `mapstructure:"name"`
	Role                   string   `mapstructure:"role"`
	Personality            string   `mapstructure:"personality"`
	Expertise              []string `mapstructure:"expertise"`
	Greeting               string   `mapstructure:"greeting"`
	Brand                  string   `mapstructure:"brand"`
	FounderName            string   `mapstructure:"founder_name"`
	FounderPhone           string   `mapstructure:"founder_phone"`
	PronunciationNote      string   `mapstructure:"pronunciation_note"`
	NavigationInstructions string   `mapstructure:"navigation_instructions"`
	OffTopicMessage        string   `mapstructure:"off_topic_message"`
	RefocusMessage         string   `mapstructure:"refocus_message"`
	KnowledgePath          string   `mapstructure:"knowledge_path"`
	KnowledgeSource        string   `mapstructure:"knowledge_source"` // file | minio
}

// ModerationConfig 存储离题拦截与 IP 封禁的策略参数。
type ModerationConfig struct {
	BlockThreshold   int           `mapstructure:"block_threshold"`
	BlockDuration    time.Duration `mapstructure:"block_duration"`
	Ledger           string        `mapstructure:"ledger"` // memory | redis
	BlockedRedirect  string        `mapstructure:"blocked_redirect"`
	IncludedKeywords []string      `mapstructure:"included_keywords"`
	ExcludedKeywords []string      `mapstructure:"excluded_keywords"`
}

// LeadsConfig 存储销售线索的持久化配置。
type LeadsConfig struct {
	Store    string `mapstructure:"store"` // file | mysql
	FilePath string `mapstructure:"file_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailConfig 存储 SMTP 发信配置。
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// WhatsAppConfig 存储 WhatsApp Cloud API 的收发配置。
type WhatsAppConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	APIVersion    string        `mapstructure:"api_version"`
	AccessToken   string        `mapstructure:"access_token"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	VerifyToken   string        `mapstructure:"verify_token"`
	AppSecret     string        `mapstructure:"app_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	KnowledgeObject string `mapstructure:"knowledge_object"`
}

// NotificationConfig 控制通知扇出的超时。
type NotificationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// setDefaults 为未在配置文件中出现的键提供默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 密钥类键需要显式注册，AutomaticEnv 才会在 Unmarshal 时生效
	for _, key := range []string{
		"llm.api_key",
		"mail.username", "mail.password",
		"whatsapp.access_token", "whatsapp.phone_number_id", "whatsapp.app_secret", "whatsapp.verify_token",
		"database.mysql.dsn", "database.redis.password",
		"minio.access_key_id", "minio.secret_access_key",
		"elasticsearch.username", "elasticsearch.password",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.api_version", "2023-06-01")
	v.SetDefault("llm.model", "claude-3-5-sonnet-latest")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("assistant.name", "Amanda")
	v.SetDefault("assistant.role", "AI Website Guide")
	v.SetDefault("assistant.personality", "Friendly, knowledgeable, funny, speak less, and focused")
	v.SetDefault("assistant.expertise", []string{"Web technologies", "Sales", "Website development", "Email Communication"})
	v.SetDefault("assistant.greeting", "Hello! I'm Amanda, and I am here to guide you through the website. How can I help you today?")
	v.SetDefault("assistant.brand", "3alaFekra")
	v.SetDefault("assistant.navigation_instructions", "When referring to a specific page on the website, use the format [NAVIGATE:/page-url] to allow for automatic navigation.")
	v.SetDefault("assistant.off_topic_message", "I apologize, but I've noticed we've strayed from discussing the website. Would you like to know more about our services or any specific part of our website?")
	v.SetDefault("assistant.refocus_message", "Let's bring our conversation back to the website. Is there anything specific about our services or pages you'd like to know more about?")
	v.SetDefault("assistant.knowledge_path", "website_context.json")
	v.SetDefault("assistant.knowledge_source", "file")

	v.SetDefault("moderation.block_threshold", 3)
	v.SetDefault("moderation.block_duration", time.Hour)
	v.SetDefault("moderation.ledger", "memory")
	v.SetDefault("moderation.blocked_redirect", "/blocked")

	v.SetDefault("leads.store", "file")
	v.SetDefault("leads.file_path", "leads.json")

	v.SetDefault("mail.port", 587)

	v.SetDefault("whatsapp.api_base_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.api_version", "v22.0")
	v.SetDefault("whatsapp.timeout", 10*time.Second)

	v.SetDefault("kafka.topic", "site-assistant.leads")
	v.SetDefault("elasticsearch.index_name", "site_assistant_leads")
	v.SetDefault("minio.knowledge_object", "website_context.json")

	v.SetDefault("notification.timeout", 15*time.Second)
}

// Load 从指定路径读取 YAML 配置并叠加环境变量（前缀 SITE_ASSISTANT_）。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SITE_ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
