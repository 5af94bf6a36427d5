package grant

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

// WelcomePolicyConfig holds welcome grant settings.
type WelcomePolicyConfig struct {
	Amount int64 `yaml:"amount" mapstructure:"amount" default:"100" validate:"gt=0"`
}

// WelcomePolicy grants a starting balance exactly once per account.
type WelcomePolicy struct {
	config *WelcomePolicyConfig
}

// NewWelcomePolicy creates a welcome policy from raw settings.
func NewWelcomePolicy(settings map[string]any) (*WelcomePolicy, error) {
	var config WelcomePolicyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &WelcomePolicy{config: &config}, nil
}

// Name implements Policy.
func (p *WelcomePolicy) Name() string { return "welcome" }

// Automatic implements Policy.
func (p *WelcomePolicy) Automatic() bool { return true }

// Evaluate grants the configured amount unless the account already received
// a welcome grant.
func (p *WelcomePolicy) Evaluate(history []account.Transaction, _ time.Time) (int64, error) {
	if _, ok := newestGrant(history, p.Name()); ok {
		return 0, errors.Wrapf(ErrAlreadyGranted, "policy %s", p.Name())
	}
	return p.config.Amount, nil
}
