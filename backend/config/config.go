package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Auth struct {
		// HS256 密钥，为空时退回 JWT_SECRET 环境变量
		Secret string `mapstructure:"secret"`
	} `mapstructure:"auth"`
	Collab struct {
		RingCap     int           `mapstructure:"ringCap"`
		MaxDepth    int           `mapstructure:"maxDepth"`
		SnapshotTTL time.Duration `mapstructure:"snapshotTTL"`
		Semaphore   int           `mapstructure:"semaphore"`
		Dispatcher  struct {
			QueueSize   int           `mapstructure:"queueSize"`
			Workers     int           `mapstructure:"workers"`
			MaxRetry    int           `mapstructure:"maxRetry"`
			BaseBackoff time.Duration `mapstructure:"baseBackoff"`
			MaxBackoff  time.Duration `mapstructure:"maxBackoff"`
		} `mapstructure:"dispatcher"`
	} `mapstructure:"collab"`
	Cors struct {
		Enabled      bool     `mapstructure:"enabled"`
		AllowOrigins []string `mapstructure:"allowOrigins"`
	} `mapstructure:"cors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 8082)
	v.SetDefault("kafka.topic", "doc-ops")
	v.SetDefault("collab.ringCap", 1024)
	v.SetDefault("collab.maxDepth", 512)
	v.SetDefault("collab.snapshotTTL", 24*time.Hour)
	v.SetDefault("collab.semaphore", 100)
	v.SetDefault("collab.dispatcher.queueSize", 10_000)
	v.SetDefault("collab.dispatcher.workers", 4)
	v.SetDefault("collab.dispatcher.maxRetry", 3)
	v.SetDefault("collab.dispatcher.baseBackoff", 50*time.Millisecond)
	v.SetDefault("collab.dispatcher.maxBackoff", time.Second)
	v.SetDefault("cors.allowOrigins", []string{"http://localhost:5173"})
}

// Load 读取 collabConfig.yaml；环境变量 COLLAB_<SECTION>_<KEY> 可以覆盖文件里的值。
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("collabConfig")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		// 兼容从项目根目录或 backend 目录启动
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)
	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
