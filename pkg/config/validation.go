package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct tags and a handful of
// cross-field invariants the tags alone cannot express (§6.4, §9).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return err
	}

	seen := make(map[int]bool, len(cfg.Vehicles))
	for _, v := range cfg.Vehicles {
		if seen[v.ID] {
			return fmt.Errorf("duplicate vehicle id: %d", v.ID)
		}
		seen[v.ID] = true
	}

	if cfg.Spray.RefillThreshold > cfg.Spray.TankCapacity {
		return fmt.Errorf("spray.refill_threshold (%.2f) exceeds spray.tank_capacity (%.2f)",
			cfg.Spray.RefillThreshold, cfg.Spray.TankCapacity)
	}

	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
