package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/utask/internal/flagx"
	"github.com/dmitrijs2005/utask/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "90s" and integer nanoseconds are accepted. Fields left out of the
// file keep their current value.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	MetricsAddr                  string         `json:"metrics_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ConfirmationTokenValidHours  int            `json:"confirmation_token_valid_hours"`
	ResendCooldown               timex.Duration `json:"resend_cooldown"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	StoreTimeout                 timex.Duration `json:"store_timeout"`
	LoginRateLimit               int            `json:"login_rate_limit"`
	LoginRateWindow              timex.Duration `json:"login_rate_window"`
	RedisAddr                    string         `json:"redis_addr"`
	NotifierBackend              string         `json:"notifier_backend"`
	KafkaBrokers                 []string       `json:"kafka_brokers"`
	KafkaTopicPrefix             string         `json:"kafka_topic_prefix"`
	MailBaseURL                  string         `json:"mail_base_url"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c / -config.
// Without the flag nothing is loaded. An unreadable or invalid file panics,
// as the server cannot start with a half-applied configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setInt(&config.ConfirmationTokenValidHours, c.ConfirmationTokenValidHours)
	setDuration(&config.ResendCooldown, c.ResendCooldown)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setInt(&config.LoginRateLimit, c.LoginRateLimit)
	setDuration(&config.LoginRateWindow, c.LoginRateWindow)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NotifierBackend, c.NotifierBackend)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopicPrefix, c.KafkaTopicPrefix)
	setString(&config.MailBaseURL, c.MailBaseURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
