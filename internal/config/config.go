package config

import (
	"fmt"
	"time"

	"github.com/crowdeval/crowdeval/internal/density"
	"github.com/crowdeval/crowdeval/internal/pipeline"
	"github.com/crowdeval/crowdeval/internal/timer"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "crowdeval.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// StorageConfig selects and configures the session storage backend.
type StorageConfig struct {
	Type               string
	Memory             MemoryConfig
	SqliteDumpPath     string
	SqliteDumpEvery    time.Duration
	PostgresFlushEvery time.Duration
	PostgresMaxPending int
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// MonitorConfig holds status monitor settings.
type MonitorConfig struct {
	StatusFile string
	Interval   time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./crowdlogs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "crowdeval")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "crowdeval")
	viper.SetDefault("influx.bucket", "crowd_density")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.address", ":9108")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.dumpPath", "./sessions/crowdeval.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.flushInterval", "2s")
	viper.SetDefault("storage.postgres.maxPending", 200000)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "crowdeval")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.statusFile", "./crowdlogs/status.json")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("processing.minConfidence", 0.5)
	viper.SetDefault("processing.frameSkip", 1)

	def := density.DefaultThresholds()
	viper.SetDefault("thresholds.moderate", def.Moderate)
	viper.SetDefault("thresholds.warning", def.Warning)
	viper.SetDefault("thresholds.emergency", def.Emergency)

	viper.SetDefault("timer.criticalAfter", "30s")
	viper.SetDefault("timer.severeAfter", "60s")
	viper.SetDefault("timer.flashInterval", "500ms")

	viper.SetDefault("zones", defaultZones())
	viper.SetDefault("exits", defaultExits())
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetThresholds returns the density classification bounds.
func GetThresholds() density.Thresholds {
	return density.Thresholds{
		Moderate:  viper.GetFloat64("thresholds.moderate"),
		Warning:   viper.GetFloat64("thresholds.warning"),
		Emergency: viper.GetFloat64("thresholds.emergency"),
	}
}

// GetTimerConfig returns the emergency timer escalation settings. Timer keys
// take Go duration strings ("30s", "500ms"); a bare number is read as seconds.
func GetTimerConfig() timer.Config {
	return timer.Config{
		CriticalAfter: getSeconds("timer.criticalAfter"),
		SevereAfter:   getSeconds("timer.severeAfter"),
		FlashInterval: getSeconds("timer.flashInterval"),
	}
}

// getSeconds reads a duration key, treating bare numbers as seconds instead
// of viper's nanoseconds.
func getSeconds(key string) time.Duration {
	switch v := viper.Get(key).(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	}
	return viper.GetDuration(key)
}

// GetProcessingConfig assembles and validates the frame processing settings.
func GetProcessingConfig() (pipeline.Config, error) {
	cfg := pipeline.Config{
		Thresholds:    GetThresholds(),
		Timer:         GetTimerConfig(),
		MinConfidence: viper.GetFloat64("processing.minConfidence"),
		FrameSkip:     viper.GetInt("processing.frameSkip"),
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return cfg, fmt.Errorf("thresholds: %w", err)
	}
	if err := cfg.Timer.Validate(); err != nil {
		return cfg, fmt.Errorf("timer: %w", err)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return cfg, fmt.Errorf("processing.minConfidence must be within [0,1], got %g", cfg.MinConfidence)
	}
	if cfg.FrameSkip < 1 {
		return cfg, fmt.Errorf("processing.frameSkip must be at least 1, got %d", cfg.FrameSkip)
	}
	return cfg, nil
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SqliteDumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		SqliteDumpEvery:    viper.GetDuration("storage.sqlite.dumpInterval"),
		PostgresFlushEvery: viper.GetDuration("storage.postgres.flushInterval"),
		PostgresMaxPending: viper.GetInt("storage.postgres.maxPending"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StatusFile: viper.GetString("monitor.statusFile"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
}
