package grant

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

// DailyBonusPolicyConfig holds bonus claim settings.
type DailyBonusPolicyConfig struct {
	Amount        int64 `yaml:"amount" mapstructure:"amount" default:"25" validate:"gt=0"`
	CooldownHours int   `yaml:"cooldown_hours" mapstructure:"cooldown_hours" default:"24" validate:"gt=0"`
}

// DailyBonusPolicy grants a claimable bonus gated by a cooldown since the
// account's newest bonus transaction.
type DailyBonusPolicy struct {
	config *DailyBonusPolicyConfig
}

// NewDailyBonusPolicy creates a daily bonus policy from raw settings.
func NewDailyBonusPolicy(settings map[string]any) (*DailyBonusPolicy, error) {
	var config DailyBonusPolicyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &DailyBonusPolicy{config: &config}, nil
}

// Name implements Policy.
func (p *DailyBonusPolicy) Name() string { return "daily_bonus" }

// Automatic implements Policy.
func (p *DailyBonusPolicy) Automatic() bool { return false }

// Cooldown returns the configured claim cooldown.
func (p *DailyBonusPolicy) Cooldown() time.Duration {
	return time.Duration(p.config.CooldownHours) * time.Hour
}

// Evaluate grants the configured amount when the newest bonus transaction is
// older than the cooldown (or absent).
func (p *DailyBonusPolicy) Evaluate(history []account.Transaction, now time.Time) (int64, error) {
	if last, ok := newestGrant(history, p.Name()); ok {
		elapsed := now.Sub(last.CreatedAt)
		if elapsed < p.Cooldown() {
			return 0, errors.Wrapf(ErrNotEligible, "policy %s next claim in %v",
				p.Name(), p.Cooldown()-elapsed)
		}
	}
	return p.config.Amount, nil
}
