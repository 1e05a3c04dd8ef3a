package config

import "os"

type Config struct {
	// PostgresDSN selects Postgres storage. Empty keeps trips in memory.
	PostgresDSN string
	// RabbitMQURL enables alarm event publishing when set.
	RabbitMQURL  string
	MQTTBroker   string
	MQTTClientID string
	HTTPPort     string
	SettingsFile string
	LogLevel     string
	LogFormat    string
}

func Load() *Config {
	return &Config{
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "wakeme-server"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		SettingsFile: os.Getenv("SETTINGS_FILE"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
