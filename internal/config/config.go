package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/stamin-up/service-requests/pkg/database"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string
}

// ServiceConfig holds all configuration for the request service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    database.PostgresConfig
	JWTConfig   JWTConfig
	KafkaConfig KafkaConfig
}

// Load reads configuration from REQUESTS_-prefixed environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("REQUESTS")
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "service_requests")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "stamin-up.")

	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:   port,
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTConfig: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
	}, nil
}
