package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/lox/wagerd/internal/game"
)

// Transfer credits amount to an account.
type Transfer struct {
	Account string
	Amount  int64
}

// Wallet is the funding boundary: where stakes come from and payouts go.
// Credit must apply every transfer or none.
type Wallet interface {
	Debit(ctx context.Context, account string, amount int64) error
	Credit(ctx context.Context, transfers []Transfer) error
}

// MemoryWallet keeps balances in memory. Safe for concurrent use.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemoryWallet creates an empty wallet.
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: make(map[string]int64)}
}

// Fund adds amount to an account, creating it if needed.
func (w *MemoryWallet) Fund(account string, amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[account] += amount
}

// Balance returns the account balance.
func (w *MemoryWallet) Balance(account string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[account]
}

// Total returns the sum of all balances.
func (w *MemoryWallet) Total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	for _, b := range w.balances {
		total += b
	}
	return total
}

func (w *MemoryWallet) Debit(ctx context.Context, account string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.balances[account] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", game.ErrInsufficientFunds, account, w.balances[account], amount)
	}
	w.balances[account] -= amount
	return nil
}

func (w *MemoryWallet) Credit(ctx context.Context, transfers []Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range transfers {
		w.balances[t.Account] += t.Amount
	}
	return nil
}
