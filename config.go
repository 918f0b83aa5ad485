package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/asdine/storm/v3"
	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/brain"
	"github.com/sr-robotics/srcore/canbus"
	"github.com/sr-robotics/srcore/devreg"
	"github.com/sr-robotics/srcore/intent"
	"github.com/sr-robotics/srcore/safety"
)

// EnvConfig is the process configuration plus the runtime handles built
// from it. Env vars override the development defaults.
type EnvConfig struct {
	Addr          string  `env:"SR_ADDR" envDefault:"0.0.0.0:8080"`
	Backend       string  `env:"SR_CAN_BACKEND" envDefault:"mock"`
	Interface     string  `env:"SR_CAN_INTERFACE" envDefault:"mock0"`
	Bitrate       string  `env:"SR_CAN_BITRATE" envDefault:"500k"`
	DescriptorDir string  `env:"SR_DESCRIPTOR_DIR" envDefault:"./descriptors"`
	DeviceID      string  `env:"SR_DEVICE" envDefault:"arm6"`
	DataDir       string  `env:"SR_DATA_DIR" envDefault:"./tmp"`
	JWTIssuer     string  `env:"SR_JWT_ISSUER" envDefault:"DEV"`
	JWTSecret     string  `env:"SR_JWT_SECRET" envDefault:"dev-only-secret"`
	Threshold     float64 `env:"SR_INTENT_THRESHOLD" envDefault:"0.7"`
	Debug         bool    `env:"SR_DEBUG" envDefault:"0"`

	DB      *storm.DB
	Bus     canbus.Bus
	Reg     *devreg.Registry
	Engine  *safety.Engine
	Brain   *brain.Brain
	Metrics *devreg.MetricsHub
	Audit   *safety.AuditLog
	EStop   *safety.EStopFlag
	Dogs    *safety.Manager
	Logger  *zap.Logger
}

// openUserDb opens the bolt-backed user store and initializes its bucket.
func openUserDb(dataDir string) (*storm.DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	db, err := storm.Open(filepath.Join(dataDir, "users.db"))
	if err != nil {
		return nil, err
	}
	if err := db.Init(&User{}); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openBus resolves the backend and bitrate names from the environment.
func openBus(cfg *EnvConfig) (canbus.Bus, error) {
	backend := canbus.Backend(cfg.Backend)
	if backend == canbus.BackendSlcan {
		bitrate, err := canbus.ParseBitrate(cfg.Bitrate)
		if err != nil {
			return nil, err
		}
		return canbus.OpenSlcan(cfg.Interface, bitrate)
	}
	return canbus.Open(backend, cfg.Interface)
}

func parserConfig(cfg *EnvConfig) intent.Config {
	c := intent.DefaultConfig()
	if cfg.Threshold > 0 {
		c.ConfidenceThreshold = cfg.Threshold
	}
	return c
}

func (cfg *EnvConfig) Close() {
	if cfg.Bus != nil {
		cfg.Bus.Close()
	}
	if cfg.Audit != nil {
		cfg.Audit.Close()
	}
	if cfg.DB != nil {
		cfg.DB.Close()
	}
}

func must(err error, what string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", what, err))
	}
}
