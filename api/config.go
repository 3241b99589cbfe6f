package api

import "time"

type ServerConfig struct {
	DB     DBConfig
	Redis  RedisConfig
	Engine EngineConfig
}

type DBConfig struct {
	// Driver 支援 postgres 與 memory，memory 供單機試跑與測試
	Driver   string
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	// Addr 留空時 SSE 退化為單節點廣播，不依賴 Redis
	Addr     string
	Password string
	DB       int

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	SSE string
}

type EngineConfig struct {
	LockTimeout    time.Duration
	ClockInterval  time.Duration
	MaxExtensions  int
	DraftFullRules bool
}
