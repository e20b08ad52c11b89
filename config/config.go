package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Gateway  Gateway
	JwtKey   string
}

type Server struct {
	Port string
}
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Gateway holds the payment provider credentials. KeySecret signs the
// redirect-callback signature, WebhookSecret signs webhook bodies.
type Gateway struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	CallbackURL   string
	Timeout       time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 15)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Gateway.BaseURL = viper.GetString("GATEWAY_BASE_URL")
	config.Gateway.KeyID = viper.GetString("GATEWAY_KEY_ID")
	config.Gateway.KeySecret = viper.GetString("GATEWAY_KEY_SECRET")
	config.Gateway.WebhookSecret = viper.GetString("GATEWAY_WEBHOOK_SECRET")
	config.Gateway.CallbackURL = viper.GetString("GATEWAY_CALLBACK_URL")
	config.Gateway.Timeout = time.Duration(viper.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second

	config.JwtKey = viper.GetString("JWT_SECRET_KEY")

	log.Info().Str("port", config.Server.Port).Str("db", config.Database.Name).Msg("Config loaded")
	return &config, nil

}
