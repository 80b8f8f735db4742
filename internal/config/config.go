package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Progress ProgressConfig `mapstructure:"progress"`
	CORS     CORSConfig     `mapstructure:"cors"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProgressConfig 学习进度防跳过策略
type ProgressConfig struct {
	// 每张幻灯片的最短停留时间下限（秒），元数据缺失时的兜底值
	MinDwellFloorSeconds int `mapstructure:"min_dwell_floor_seconds"`
	// 视频完成判定比例（观看时长 / 总时长）
	VideoCompletionRatio float64 `mapstructure:"video_completion_ratio"`
	// 时长未知的视频按观看秒数判定完成的下限
	VideoMinWatchSeconds int `mapstructure:"video_min_watch_seconds"`
	// 视频快进容忍值（秒），超过观看前沿该值的 seek 会被拒绝
	VideoSeekToleranceSeconds int `mapstructure:"video_seek_tolerance_seconds"`
	// 测验及格分数线（百分制）
	QuizPassScore float64 `mapstructure:"quiz_pass_score"`
	// 乐观锁冲突的最大重试次数
	SaveRetryAttempts int `mapstructure:"save_retry_attempts"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("STAFF_TRAINING")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	viper.SetDefault("progress.min_dwell_floor_seconds", 20)
	viper.SetDefault("progress.video_completion_ratio", 0.95)
	viper.SetDefault("progress.video_min_watch_seconds", 60)
	viper.SetDefault("progress.video_seek_tolerance_seconds", 5)
	viper.SetDefault("progress.quiz_pass_score", 80)
	viper.SetDefault("progress.save_retry_attempts", 3)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Progress.SaveRetryAttempts <= 0 {
		cfg.Progress.SaveRetryAttempts = 3
	}

	return &cfg, nil
}
