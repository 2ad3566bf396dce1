// Package config loads per-process tunables for a robot from the
// environment, following the same accumulated-problems validation style
// used throughout this codebase's ambient configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxRobots bounds the ring's static id space, 0..MaxRobots-1.
	DefaultMaxRobots = 8
	// DefaultMaxScreens bounds the screen id space the Leader dials out to.
	DefaultMaxScreens = 5
	// DefaultScoopTimeFactor is milliseconds of scoop time per gram.
	DefaultScoopTimeFactor = 10
	// DefaultLowFlavorAmount seeds one flavor lower to exercise exhaustion
	// scenarios without waiting out the full stock.
	DefaultLowFlavorAmount = 2800

	// DefaultLogLevel controls verbosity for ring logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "robot.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultBackupInterval controls how often the Leader's backup store
	// flushes the latest LeaderBackup snapshot to disk.
	DefaultBackupInterval = 5 * time.Second
	// DefaultRingCtlAddrOffset is the gRPC admin port offset from a robot's
	// ring port.
	DefaultRingCtlAddrOffset = 1000
)

// Config captures all runtime tunables for one robot process.
type Config struct {
	RobotID         int
	MaxRobots       int
	MaxScreens      int
	ScoopTimeFactor int
	LowFlavorAmount uint32
	AdminToken      string
	Logging         LoggingConfig
	BackupPath      string
	BackupInterval  time.Duration
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads robot configuration from environment variables for the given
// robot id, applying sane defaults and returning descriptive errors for
// invalid overrides.
func Load(robotID int) (*Config, error) {
	cfg := &Config{
		RobotID:         robotID,
		MaxRobots:       DefaultMaxRobots,
		MaxScreens:      DefaultMaxScreens,
		ScoopTimeFactor: DefaultScoopTimeFactor,
		LowFlavorAmount: DefaultLowFlavorAmount,
		AdminToken:      strings.TrimSpace(os.Getenv("RING_ADMIN_TOKEN")),
		Logging: LoggingConfig{
			Level:      getString("RING_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("RING_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		BackupPath:     strings.TrimSpace(os.Getenv("RING_BACKUP_PATH")),
		BackupInterval: DefaultBackupInterval,
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("RING_MAX_ROBOTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RING_MAX_ROBOTS must be a positive integer, got %q", raw))
		} else {
			cfg.MaxRobots = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_MAX_SCREENS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RING_MAX_SCREENS must be a positive integer, got %q", raw))
		} else {
			cfg.MaxScreens = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_SCOOP_TIME_FACTOR")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RING_SCOOP_TIME_FACTOR must be a positive integer, got %q", raw))
		} else {
			cfg.ScoopTimeFactor = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RING_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RING_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RING_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("RING_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RING_BACKUP_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("RING_BACKUP_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.BackupInterval = duration
		}
	}

	if robotID < 0 || robotID >= cfg.MaxRobots {
		problems = append(problems, fmt.Sprintf("robot id %d must be in 0..%d", robotID, cfg.MaxRobots))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
