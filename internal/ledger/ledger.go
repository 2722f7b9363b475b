// Package ledger escrows the stakes of every match and disburses them at
// settlement. A match's pot is exactly the sum of the stakes collected for
// it, and a settlement pays out exactly the pot, once.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/wagerd/internal/game"
)

// House is the participant id of the bank. Its wallet account is the
// reserve that backs house-side obligations.
const House = "house"

type escrow struct {
	mu        sync.Mutex
	stake     int64
	order     []string
	collected map[string]int64
	paid      map[string]int64
	pot       int64
	disbursed int64
	settled   bool
}

// Ledger holds per-match escrows.
type Ledger struct {
	mu      sync.RWMutex
	escrows map[game.MatchKey]*escrow
	wallet  Wallet
	logger  *log.Logger
}

// New creates a ledger drawing stakes from and paying out to wallet.
func New(wallet Wallet, logger *log.Logger) *Ledger {
	return &Ledger{
		escrows: make(map[game.MatchKey]*escrow),
		wallet:  wallet,
		logger:  logger.WithPrefix("ledger"),
	}
}

// Open registers an escrow requiring stake from every participant.
func (l *Ledger) Open(key game.MatchKey, stake int64) error {
	if stake <= 0 {
		return game.ErrInvalidStake
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.escrows[key]; ok {
		return fmt.Errorf("escrow %s already open", key)
	}
	l.escrows[key] = &escrow{
		stake:     stake,
		collected: make(map[string]int64),
		paid:      make(map[string]int64),
	}
	return nil
}

// Discard drops an escrow that holds nothing.
func (l *Ledger) Discard(key game.MatchKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.escrows[key]
	if !ok {
		return fmt.Errorf("%w: no escrow for %s", game.ErrMatchNotFound, key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pot != 0 {
		return fmt.Errorf("escrow %s still holds %d", key, e.pot)
	}
	delete(l.escrows, key)
	return nil
}

func (l *Ledger) get(key game.MatchKey) (*escrow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.escrows[key]
	if !ok {
		return nil, fmt.Errorf("%w: no escrow for %s", game.ErrMatchNotFound, key)
	}
	return e, nil
}

// Collect debits participant's wallet by amount into the match pot.
func (l *Ledger) Collect(ctx context.Context, key game.MatchKey, participant string, amount int64) error {
	e, err := l.get(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settled {
		return game.ErrAlreadySettled
	}
	if amount != e.stake {
		return fmt.Errorf("%w: got %d, want %d", game.ErrStakeMismatch, amount, e.stake)
	}
	if _, ok := e.collected[participant]; ok {
		return game.ErrAlreadyCollected
	}
	if err := l.wallet.Debit(ctx, participant, amount); err != nil {
		return err
	}

	e.collected[participant] = amount
	e.order = append(e.order, participant)
	e.pot += amount
	l.logger.Debug("Collected stake", "match", key, "participant", participant, "amount", amount, "pot", e.pot)
	return nil
}

// Release returns one participant's stake before the match resolves.
func (l *Ledger) Release(ctx context.Context, key game.MatchKey, participant string) error {
	e, err := l.get(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settled {
		return game.ErrAlreadySettled
	}
	amount, ok := e.collected[participant]
	if !ok {
		return game.ErrNotParticipant
	}
	if err := l.wallet.Credit(ctx, []Transfer{{Account: participant, Amount: amount}}); err != nil {
		return err
	}

	delete(e.collected, participant)
	for i, p := range e.order {
		if p == participant {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.pot -= amount
	l.logger.Debug("Released stake", "match", key, "participant", participant, "amount", amount, "pot", e.pot)
	return nil
}

// Payout disburses the whole pot according to distribution. The
// distribution must sum to the pot exactly and may only name participants
// whose stakes were collected.
func (l *Ledger) Payout(ctx context.Context, key game.MatchKey, distribution map[string]int64) error {
	e, err := l.get(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settled {
		return game.ErrAlreadySettled
	}

	var sum int64
	for p, amount := range distribution {
		if amount < 0 {
			return fmt.Errorf("%w: negative amount for %s", game.ErrPayoutExceedsPot, p)
		}
		if _, ok := e.collected[p]; !ok {
			return fmt.Errorf("%w: %s did not stake", game.ErrPayoutExceedsPot, p)
		}
		sum += amount
	}
	if sum != e.pot {
		return fmt.Errorf("%w: distribution %d, pot %d", game.ErrPayoutExceedsPot, sum, e.pot)
	}

	return l.settle(ctx, key, e, distribution)
}

// Refund returns every collected stake unchanged and settles the escrow.
func (l *Ledger) Refund(ctx context.Context, key game.MatchKey) error {
	e, err := l.get(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settled {
		return game.ErrAlreadySettled
	}

	distribution := make(map[string]int64, len(e.collected))
	for p, amount := range e.collected {
		distribution[p] = amount
	}
	return l.settle(ctx, key, e, distribution)
}

// settle must be called with e.mu held. Nothing changes unless the wallet
// accepts every credit.
func (l *Ledger) settle(ctx context.Context, key game.MatchKey, e *escrow, distribution map[string]int64) error {
	transfers := make([]Transfer, 0, len(distribution))
	for _, p := range e.order {
		if amount := distribution[p]; amount > 0 {
			transfers = append(transfers, Transfer{Account: p, Amount: amount})
		}
	}
	if err := l.wallet.Credit(ctx, transfers); err != nil {
		l.logger.Warn("Settlement refused", "match", key, "pot", e.pot, "error", err)
		return fmt.Errorf("settle %s: %w", key, err)
	}

	for p, amount := range distribution {
		e.paid[p] = amount
	}
	e.disbursed = e.pot
	e.settled = true
	l.logger.Info("Settled", "match", key, "pot", e.pot, "transfers", len(transfers))
	return nil
}

// Entry is one participant's line in a Statement.
type Entry struct {
	Participant string
	Collected   int64
	Paid        int64
}

// Statement is a read-only snapshot of an escrow.
type Statement struct {
	Key       game.MatchKey
	Stake     int64
	Pot       int64
	Disbursed int64
	Settled   bool
	Entries   []Entry
}

// Balance is what the escrow still holds: zero once settled.
func (s Statement) Balance() int64 {
	return s.Pot - s.Disbursed
}

// Paid returns what a participant received at settlement.
func (s Statement) Paid(participant string) int64 {
	for _, e := range s.Entries {
		if e.Participant == participant {
			return e.Paid
		}
	}
	return 0
}

// Statement returns a snapshot of the escrow for key.
func (l *Ledger) Statement(key game.MatchKey) (Statement, error) {
	e, err := l.get(key)
	if err != nil {
		return Statement{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Statement{
		Key:       key,
		Stake:     e.stake,
		Pot:       e.pot,
		Disbursed: e.disbursed,
		Settled:   e.settled,
	}
	for _, p := range e.order {
		st.Entries = append(st.Entries, Entry{Participant: p, Collected: e.collected[p], Paid: e.paid[p]})
	}
	return st, nil
}
