package grant

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/ledger"
	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

// Chain holds the configured grant policies in order. Grants for one account
// are serialized by a per-account lock held from the history read through the
// credit, so two concurrent claims cannot both pass the eligibility check on
// a history that misses the other's grant.
type Chain struct {
	policies []Policy
	ledger   *ledger.Ledger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-account grant locks
}

// NewChain creates a chain over the given ledger.
func NewChain(l *ledger.Ledger, policies ...Policy) *Chain {
	return &Chain{
		policies: policies,
		ledger:   l,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Policies returns the configured policies.
func (c *Chain) Policies() []Policy {
	return c.policies
}

// ApplyAutomatic runs every automatic policy for the account, typically right
// after account creation. Ineligibility is skipped silently; other failures
// are logged and do not stop the remaining policies.
func (c *Chain) ApplyAutomatic(accountID string, now time.Time) []account.Transaction {
	var applied []account.Transaction
	for _, p := range c.policies {
		if !p.Automatic() {
			continue
		}
		tx, err := c.apply(p, accountID, now)
		if err != nil {
			if !errors.Is(err, ErrNotEligible) && !errors.Is(err, ErrAlreadyGranted) {
				zlog.Warn().Err(err).Msgf("grant: automatic policy %s failed account=%s", p.Name(), accountID)
			}
			continue
		}
		applied = append(applied, tx)
	}
	return applied
}

// Claim runs the named claimable policy for the account.
func (c *Chain) Claim(policyName, accountID string, now time.Time) (account.Transaction, error) {
	for _, p := range c.policies {
		if p.Name() != policyName || p.Automatic() {
			continue
		}
		return c.apply(p, accountID, now)
	}
	return account.Transaction{}, errors.Wrapf(ErrUnknownPolicy, "policy %s", policyName)
}

func (c *Chain) apply(p Policy, accountID string, now time.Time) (account.Transaction, error) {
	lock := c.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	history, err := c.ledger.HistoryFor(accountID)
	if err != nil {
		return account.Transaction{}, err
	}

	amount, err := p.Evaluate(history, now)
	if err != nil {
		return account.Transaction{}, err
	}

	tx, err := c.ledger.Add(accountID, amount, p.Name(), "", account.KindAdd)
	if err != nil {
		return account.Transaction{}, errors.Wrapf(err, "apply policy %s", p.Name())
	}
	zlog.Info().Msgf("grant: applied policy=%s account=%s amount=%d", p.Name(), accountID, amount)
	return tx, nil
}

func (c *Chain) accountLock(accountID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[accountID] = lock
	}
	return lock
}
