package timeline

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the deployment knobs of the engine, parsed from the
// environment.
type Config struct {
	// Path is the storage file for the bolt-backed store.
	Path string `env:"PASSAGE_DB_PATH" envDefault:"passage.db"`
	// Mode selects which entity data fields are valid.
	Mode OperationMode `env:"PASSAGE_MODE" envDefault:"counter"`
	// OverstayThreshold is how long an entity may stay inside before the
	// overstay tracker flags it.
	OverstayThreshold time.Duration `env:"PASSAGE_OVERSTAY_THRESHOLD" envDefault:"8h"`
	// CommitBudget is the expected upper bound for one persistence commit,
	// roughly one UI refresh frame. Exceeding it is logged as a performance
	// warning, never treated as an error.
	CommitBudget time.Duration `env:"PASSAGE_COMMIT_BUDGET" envDefault:"17ms"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	switch c.Mode {
	case ModeCounter, ModeAttendance, ModeParking, ModeInventory, ModeRefrigerator:
	default:
		return Config{}, fmt.Errorf("unknown operation mode: %q", c.Mode)
	}
	return c, nil
}
