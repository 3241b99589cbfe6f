package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bidflow/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// db config
	pflag.String("db-driver", "postgres", "")
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "public", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")

	// redis stream keys
	pflag.String("redis-stream-key-for-sse", "bidflow-shared-sse-stream", "")

	// engine config
	pflag.Duration("engine-lock-timeout", 3*time.Second, "")
	pflag.Duration("engine-clock-interval", time.Second, "")
	pflag.Int("engine-max-extensions", 30, "")
	pflag.Bool("engine-draft-full-rules", false, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BIDFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			DB: api.DBConfig{
				Driver:   viper.GetString("db-driver"),
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:     viper.GetString("redis-addr"),
				Password: viper.GetString("redis-password"),
				DB:       viper.GetInt("redis-db"),
				StreamKeys: api.RedisStreamKeys{
					SSE: viper.GetString("redis-stream-key-for-sse"),
				},
			},
			Engine: api.EngineConfig{
				LockTimeout:    viper.GetDuration("engine-lock-timeout"),
				ClockInterval:  viper.GetDuration("engine-clock-interval"),
				MaxExtensions:  viper.GetInt("engine-max-extensions"),
				DraftFullRules: viper.GetBool("engine-draft-full-rules"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	if args.ServerURL == "" {
		return false
	}
	if args.ServerConfig.DB.Driver == "memory" {
		return true
	}
	return args.ServerConfig.DB.Host != "" && args.ServerConfig.DB.User != "" && args.ServerConfig.DB.Database != ""
}
