package grant

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/ledger"
	"github.com/SabaVan/kame-sub000/internal/infra/config"
)

// NewChainFromConfig creates a grant chain from configuration.
func NewChainFromConfig(cfg *config.Config, l *ledger.Ledger) (*Chain, error) {
	var policies []Policy

	for i, gcfg := range cfg.Grants {
		var policy Policy
		var err error
		zlog.Debug().Msgf("creating grant policy: index=%d type=%s settings=%+v", i+1, gcfg.Type, gcfg.Settings)
		switch gcfg.Type {
		case "welcome":
			policy, err = NewWelcomePolicy(gcfg.Settings)

		case "daily_bonus":
			policy, err = NewDailyBonusPolicy(gcfg.Settings)

		default:
			return nil, errors.Newf("unsupported grant policy type: %s (policy index %d)", gcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create grant policy (index %d, type %s)", i, gcfg.Type)
		}

		policies = append(policies, policy)
		zlog.Info().Msgf("registered grant policy: index=%d type=%s", i+1, gcfg.Type)
	}

	return NewChain(l, policies...), nil
}
