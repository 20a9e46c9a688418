// Package config 从环境变量读取服务配置 (方便 Docker 部署)
package config

import (
	"os"
	"road-editor/algo"
	"road-editor/editor"
	"road-editor/model"
	"road-editor/utils"
	"strconv"
	"time"
)

// 存储方式
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config 服务配置
type Config struct {
	Port    string
	GinMode string
	Storage string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret     string
	AuthRequired  bool
	AdminPassword string

	// 编辑会话 ID, 持久化的轴线按它区分
	SessionID string

	ChordLength      float64
	AngleStep        float64
	ArcChord         float64
	LaneEpsilon      float64
	ClusterTolerance float64
	RebuildDelay     time.Duration
	LaneWidth        float64
	Origin           model.Origin
}

// Load 读取所有配置项, 非法的数值回退到默认值并记录警告
func Load() Config {
	def := editor.DefaultOptions()
	return Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		Storage: getStorage("STORAGE", StoragePostgres),

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "roaduser"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "roadpassword"),
		DBName:     getEnvOrDefault("DB_NAME", "roadeditor"),

		JWTSecret:     getEnvOrDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		AuthRequired:  getBool("AUTH_REQUIRED", false),
		AdminPassword: getEnvOrDefault("ADMIN_PASSWORD", "admin123"),
		SessionID:     getEnvOrDefault("EDITOR_SESSION", "default"),

		ChordLength:      getPositiveFloat("CHORD_LENGTH", algo.DefaultSamplerOptions.ChordLength),
		AngleStep:        getPositiveFloat("ANGLE_STEP", algo.DefaultSamplerOptions.AngleStep),
		ArcChord:         getPositiveFloat("ARC_CHORD", def.ArcChord),
		LaneEpsilon:      getPositiveFloat("LANE_EPSILON", def.LaneEpsilon),
		ClusterTolerance: getPositiveFloat("CLUSTER_TOLERANCE", def.ClusterTolerance),
		RebuildDelay:     getDuration("REBUILD_DELAY", def.RebuildDelay),
		LaneWidth:        getPositiveFloat("DEFAULT_LANE_WIDTH", def.LaneWidth),
		Origin: model.Origin{
			Lat: getFloat("ORIGIN_LAT", 0),
			Lon: getFloat("ORIGIN_LON", 0),
		},
	}
}

// EditorOptions 编辑会话参数
func (c Config) EditorOptions() editor.Options {
	return editor.Options{
		Sampler:          algo.SamplerOptions{ChordLength: c.ChordLength, AngleStep: c.AngleStep},
		LaneEpsilon:      c.LaneEpsilon,
		ArcChord:         c.ArcChord,
		ClusterTolerance: c.ClusterTolerance,
		RebuildDelay:     c.RebuildDelay,
		LaneWidth:        c.LaneWidth,
		Origin:           c.Origin,
	}
}

// BuildOptions 上传文档的车道几何构建参数
func (c Config) BuildOptions() algo.BuildOptions {
	return algo.BuildOptions{
		Sampler: algo.SamplerOptions{ChordLength: c.ChordLength, AngleStep: c.AngleStep},
		Epsilon: c.LaneEpsilon,
	}
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getStorage(key, defaultVal string) string {
	switch v := getEnvOrDefault(key, defaultVal); v {
	case StoragePostgres, StorageMemory:
		return v
	default:
		utils.LogWarn("config %s=%q is not postgres or memory, using %s", key, v, defaultVal)
		return defaultVal
	}
}

func getFloat(key string, defaultVal float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		utils.LogWarn("config %s=%q is not a number, using %g", key, raw, defaultVal)
		return defaultVal
	}
	return v
}

func getPositiveFloat(key string, defaultVal float64) float64 {
	v := getFloat(key, defaultVal)
	if !(v > 0) {
		utils.LogWarn("config %s must be positive, using %g", key, defaultVal)
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		utils.LogWarn("config %s=%q is not a boolean, using %t", key, raw, defaultVal)
		return defaultVal
	}
	return v
}

// getDuration 支持 "150ms" 这样的时长, 纯数字按毫秒处理
func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		utils.LogWarn("config %s=%q is not a duration, using %v", key, raw, defaultVal)
		return defaultVal
	}
	return d
}
