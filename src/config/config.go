package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvFileEnvVar    = "SCREEN_GIF"
	ConfigFileEnvVar = "SCREEN_GIF_CONFIG"

	DefaultOutputName    = "capture.gif"
	DefaultThrottle      = 16 * time.Millisecond
	DefaultFrameCount    = 3
	DefaultFrameInterval = time.Second
	DefaultFrameDelay    = 100 * time.Millisecond
	// DefaultResidentPort is the loopback port of the single-resident guard.
	DefaultResidentPort = 49560
)

type LoadOptions struct {
	// ConfigPathOverride replaces SCREEN_GIF_CONFIG.
	ConfigPathOverride string
	OutputPathOverride string
}

type Config struct {
	OutputPath          string
	ScratchDir          string
	Throttle            time.Duration
	FrameCount          int
	FrameInterval       time.Duration
	FrameDelay          time.Duration
	ArmHotkey           string
	EnableFileLogging   bool
	CopyPathToClipboard bool
	AbortOnPress        bool
	KeepFrames          bool
	HookMaxRestarts     int
	// ResidentPort 0 disables the single-resident guard.
	ResidentPort int
	ConfigPath   string
}

// fileConfig mirrors the optional TOML file. Durations are milliseconds.
type fileConfig struct {
	OutputPath          *string `toml:"output_path"`
	ScratchDir          *string `toml:"scratch_dir"`
	ThrottleMS          *int    `toml:"throttle_ms"`
	FrameCount          *int    `toml:"frame_count"`
	FrameIntervalMS     *int    `toml:"frame_interval_ms"`
	FrameDelayMS        *int    `toml:"frame_delay_ms"`
	ArmHotkey           *string `toml:"arm_hotkey"`
	EnableFileLogging   *bool   `toml:"enable_file_logging"`
	CopyPathToClipboard *bool   `toml:"copy_path_to_clipboard"`
	AbortOnPress        *bool   `toml:"abort_on_press"`
	KeepFrames          *bool   `toml:"keep_frames"`
	HookMaxRestarts     *int    `toml:"hook_max_restarts"`
	ResidentPort        *int    `toml:"resident_port"`
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources, lowest priority first:
	// 1) built-in defaults
	// 2) TOML file from SCREEN_GIF_CONFIG (or the override)
	// 3) environment, after .env from the executable dir or SCREEN_GIF is loaded
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := defaults()

	cfgPath := strings.TrimSpace(opts.ConfigPathOverride)
	if cfgPath == "" {
		cfgPath = strings.TrimSpace(os.Getenv(ConfigFileEnvVar))
	}
	if cfgPath != "" {
		if err := applyFile(cfg, cfgPath); err != nil {
			return nil, err
		}
		cfg.ConfigPath = cfgPath
	}

	applyEnv(cfg)

	if override := strings.TrimSpace(opts.OutputPathOverride); override != "" {
		cfg.OutputPath = override
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		OutputPath:          filepath.Join(os.TempDir(), DefaultOutputName),
		ScratchDir:          filepath.Join(os.TempDir(), "screen-gif-frames"),
		Throttle:            DefaultThrottle,
		FrameCount:          DefaultFrameCount,
		FrameInterval:       DefaultFrameInterval,
		FrameDelay:          DefaultFrameDelay,
		CopyPathToClipboard: true,
		ResidentPort:        DefaultResidentPort,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.OutputPath, fc.OutputPath)
	setString(&cfg.ScratchDir, fc.ScratchDir)
	setMillis(&cfg.Throttle, fc.ThrottleMS)
	setPositive(&cfg.FrameCount, fc.FrameCount)
	setMillis(&cfg.FrameInterval, fc.FrameIntervalMS)
	setMillis(&cfg.FrameDelay, fc.FrameDelayMS)
	if fc.ArmHotkey != nil {
		cfg.ArmHotkey = strings.TrimSpace(*fc.ArmHotkey)
	}
	setBool(&cfg.EnableFileLogging, fc.EnableFileLogging)
	setBool(&cfg.CopyPathToClipboard, fc.CopyPathToClipboard)
	setBool(&cfg.AbortOnPress, fc.AbortOnPress)
	setBool(&cfg.KeepFrames, fc.KeepFrames)
	if fc.HookMaxRestarts != nil && *fc.HookMaxRestarts >= 0 {
		cfg.HookMaxRestarts = *fc.HookMaxRestarts
	}
	if fc.ResidentPort != nil && validPort(*fc.ResidentPort) {
		cfg.ResidentPort = *fc.ResidentPort
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OUTPUT_PATH")); v != "" {
		cfg.OutputPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SCRATCH_DIR")); v != "" {
		cfg.ScratchDir = v
	}
	if n, ok := envInt("THROTTLE_MS"); ok && n > 0 {
		cfg.Throttle = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("FRAME_COUNT"); ok && n > 0 {
		cfg.FrameCount = n
	}
	if n, ok := envInt("FRAME_INTERVAL_MS"); ok && n > 0 {
		cfg.FrameInterval = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("FRAME_DELAY_MS"); ok && n > 0 {
		cfg.FrameDelay = time.Duration(n) * time.Millisecond
	}
	if v, ok := os.LookupEnv("ARM_HOTKEY"); ok {
		cfg.ArmHotkey = strings.TrimSpace(v)
	}
	if b, ok := envBool("ENABLE_FILE_LOGGING"); ok {
		cfg.EnableFileLogging = b
	}
	if b, ok := envBool("COPY_PATH_TO_CLIPBOARD"); ok {
		cfg.CopyPathToClipboard = b
	}
	if b, ok := envBool("ABORT_ON_PRESS"); ok {
		cfg.AbortOnPress = b
	}
	if b, ok := envBool("KEEP_FRAMES"); ok {
		cfg.KeepFrames = b
	}
	if n, ok := envInt("HOOK_MAX_RESTARTS"); ok && n >= 0 {
		cfg.HookMaxRestarts = n
	}
	if n, ok := envInt("RESIDENT_PORT"); ok && validPort(n) {
		cfg.ResidentPort = n
	}
}

func validPort(n int) bool { return n == 0 || (n >= 1024 && n <= 65535) }

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func setPositive(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int) {
	if v != nil && *v > 0 {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
