package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port     string `mapstructure:"port"`
	GRPCPort string `mapstructure:"grpc_port"`
	AppName  string `mapstructure:"app_name"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	MinIO      MinIOConfig    `mapstructure:"minio"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
	JWT        JWTConfig      `mapstructure:"jwt"`

	// Directory 好友/會員資料來源: mongo | postgres
	Directory string `mapstructure:"directory"`
	// Events 聊天事件輸出: kafka | redis | none
	Events string `mapstructure:"events"`

	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	// Addr 單機連線，空值時改用 sentinel (.env REDIS_SENTINEL*)
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
	Channel string `mapstructure:"channel"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition object storage setting
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// JWTConfig definition token setting
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}
