package config

import "github.com/kelseyhightower/envconfig"

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Postgres pool sizing; zero/empty keeps the pgx defaults.
	DBPoolMaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS"`
	DBPoolMinConns          int32  `envconfig:"DB_POOL_MIN_CONNS"`
	DBPoolMaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`

	// Admin console auth. The session layer proper lives in the main web
	// app; this service only verifies a shared bearer token.
	AdminAPIToken string `envconfig:"ADMIN_API_TOKEN" required:"true"`
	AdminUserID   int64  `envconfig:"ADMIN_USER_ID" default:"1"`

	// Broadcast dispatcher
	BroadcastBatchSize int `envconfig:"BROADCAST_BATCH_SIZE" default:"100"`
	TargetInsertChunk  int `envconfig:"TARGET_INSERT_CHUNK" default:"1000"`

	// Realtime fan-out (Socket.IO relay subscribes to these channels).
	// Empty address disables realtime publishing.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// FCM push gateway. Empty server key disables push.
	FCMServerKey string  `envconfig:"FCM_SERVER_KEY"`
	FCMBaseURL   string  `envconfig:"FCM_BASE_URL" default:"https://fcm.googleapis.com"`
	PushRPS      float64 `envconfig:"PUSH_RPS" default:"20"`
	PushBurst    int     `envconfig:"PUSH_BURST" default:"40"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
