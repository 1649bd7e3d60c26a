package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
)

// MemoryRepository implements Repository using in-memory storage.
// A single mutex serializes all mutations, which makes every operation
// one atomic unit.
type MemoryRepository struct {
	wallets  map[string]*entities.Wallet       // account|kind
	entries  map[string][]*entities.LedgerEntry // account|kind, append order
	all      []*entities.LedgerEntry           // every entry, ID order
	requests map[string]*entities.LedgerEntry  // account|kind|requestID
	usage    map[string]int64                  // account|dateKey
	earned   map[string]int64                  // account|kind|dateKey
	nextID   int64
	mu       sync.RWMutex
}

// NewMemoryRepository creates a new in-memory ledger repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		wallets:  make(map[string]*entities.Wallet),
		entries:  make(map[string][]*entities.LedgerEntry),
		requests: make(map[string]*entities.LedgerEntry),
		usage:    make(map[string]int64),
		earned:   make(map[string]int64),
		nextID:   1,
	}
}

func walletKey(accountID string, kind entities.EconomyKind) string {
	return accountID + "|" + string(kind)
}

func requestKey(accountID string, kind entities.EconomyKind, requestID string) string {
	return accountID + "|" + string(kind) + "|" + requestID
}

// GetWallet retrieves a wallet by account and kind
func (r *MemoryRepository) GetWallet(ctx context.Context, accountID string, kind entities.EconomyKind) (*entities.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallet, exists := r.wallets[walletKey(accountID, kind)]
	if !exists {
		return nil, ErrWalletNotFound
	}

	// Return a copy to prevent concurrent modification
	walletCopy := *wallet
	return &walletCopy, nil
}

// CreateWallet creates a wallet only if it does not already exist
func (r *MemoryRepository) CreateWallet(ctx context.Context, accountID string, kind entities.EconomyKind, initialBalance int64) (*entities.Wallet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := walletKey(accountID, kind)
	if existing, exists := r.wallets[key]; exists {
		existingCopy := *existing
		return &existingCopy, false, nil
	}

	wallet := &entities.Wallet{
		AccountID:   accountID,
		Kind:        kind,
		Balance:     initialBalance,
		TotalEarned: initialBalance,
		LastUpdated: time.Now(),
	}
	r.wallets[key] = wallet

	if initialBalance > 0 {
		r.appendEntryLocked(wallet, &entities.LedgerEntry{
			AccountID: accountID,
			Kind:      kind,
			Delta:     initialBalance,
			Type:      entities.EntryTypeInit,
			Reason:    "wallet registration",
			Metadata: &entities.EntryMetadata{
				Init: &entities.InitMetadata{ImportedBalance: initialBalance},
			},
		})
	}

	walletCopy := *wallet
	return &walletCopy, true, nil
}

// ApplyDelta atomically applies a signed delta and appends a ledger entry
func (r *MemoryRepository) ApplyDelta(ctx context.Context, params ApplyParams) (*entities.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applyLocked(params)
}

// ApplyDeltaWithCap applies a spend and increments daily usage in one unit
func (r *MemoryRepository) ApplyDeltaWithCap(ctx context.Context, params ApplyParams, dateKey string, limit int64) (*entities.LedgerEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amount := -params.Delta
	if amount <= 0 {
		return nil, 0, fmt.Errorf("capped apply requires a negative delta, got %d", params.Delta)
	}

	// Checked before the cap: a duplicate of a spend that already applied
	// must surface as a duplicate even when today's cap is exhausted.
	if params.ClientRequestID != "" {
		if _, exists := r.requests[requestKey(params.AccountID, params.Kind, params.ClientRequestID)]; exists {
			return nil, 0, ErrDuplicateRequest
		}
	}

	usageKey := params.AccountID + "|" + dateKey
	used := r.usage[usageKey]
	if used+amount > limit {
		return nil, 0, &CapExceededError{Used: used, Limit: limit}
	}

	params.Metadata = &entities.EntryMetadata{
		Cap: &entities.CapMetadata{DateKey: dateKey, Used: used + amount, Limit: limit},
	}

	entry, err := r.applyLocked(params)
	if err != nil {
		return nil, 0, err
	}

	r.usage[usageKey] = used + amount
	return entry, used + amount, nil
}

// SyncDailyEarned applies the positive difference of a client-reported
// earned-today value against the recorded high-water mark
func (r *MemoryRepository) SyncDailyEarned(ctx context.Context, params ApplyParams, dateKey string, reported int64) (*entities.LedgerEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Checked before the no-op short-circuit so a duplicate replays the
	// recorded entry instead of reading as a fresh stale report.
	if params.ClientRequestID != "" {
		if _, exists := r.requests[requestKey(params.AccountID, params.Kind, params.ClientRequestID)]; exists {
			return nil, 0, ErrDuplicateRequest
		}
	}

	earnedKey := params.AccountID + "|" + string(params.Kind) + "|" + dateKey
	previous := r.earned[earnedKey]
	if reported <= previous {
		return nil, 0, nil
	}

	diff := reported - previous
	params.Delta = diff
	params.Metadata = &entities.EntryMetadata{
		Sync: &entities.SyncMetadata{DateKey: dateKey, Reported: reported, Previous: previous},
	}

	entry, err := r.applyLocked(params)
	if err != nil {
		return nil, 0, err
	}

	r.earned[earnedKey] = reported
	return entry, diff, nil
}

// applyLocked performs the idempotency check, the balance check, the
// balance update, and the history append. Caller must hold the write lock.
func (r *MemoryRepository) applyLocked(params ApplyParams) (*entities.LedgerEntry, error) {
	if params.ClientRequestID != "" {
		if _, exists := r.requests[requestKey(params.AccountID, params.Kind, params.ClientRequestID)]; exists {
			return nil, ErrDuplicateRequest
		}
	}

	key := walletKey(params.AccountID, params.Kind)
	wallet, exists := r.wallets[key]
	if !exists {
		// Lazy bootstrap at zero
		wallet = &entities.Wallet{AccountID: params.AccountID, Kind: params.Kind}
		r.wallets[key] = wallet
	}

	candidate := wallet.Balance + params.Delta
	if candidate < 0 {
		return nil, &InsufficientBalanceError{Balance: wallet.Balance, Required: -params.Delta}
	}

	wallet.Balance = candidate
	if params.Delta > 0 {
		wallet.TotalEarned += params.Delta
	}
	wallet.LastUpdated = time.Now()

	entry := r.appendEntryLocked(wallet, &entities.LedgerEntry{
		AccountID:       params.AccountID,
		Kind:            params.Kind,
		Delta:           params.Delta,
		Type:            params.Type,
		Reason:          params.Reason,
		Metadata:        params.Metadata,
		ClientRequestID: params.ClientRequestID,
	})

	entryCopy := *entry
	return &entryCopy, nil
}

// appendEntryLocked assigns the next entry ID, stamps the balance, and
// indexes the entry. Caller must hold the write lock.
func (r *MemoryRepository) appendEntryLocked(wallet *entities.Wallet, entry *entities.LedgerEntry) *entities.LedgerEntry {
	entry.ID = r.nextID
	r.nextID++
	entry.BalanceAfter = wallet.Balance
	entry.CreatedAt = time.Now()

	key := walletKey(entry.AccountID, entry.Kind)
	r.entries[key] = append(r.entries[key], entry)
	r.all = append(r.all, entry)
	if entry.ClientRequestID != "" {
		r.requests[requestKey(entry.AccountID, entry.Kind, entry.ClientRequestID)] = entry
	}
	return entry
}

// GetEntryByRequestID retrieves the entry recorded for an idempotency key
func (r *MemoryRepository) GetEntryByRequestID(ctx context.Context, accountID string, kind entities.EconomyKind, requestID string) (*entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.requests[requestKey(accountID, kind, requestID)]
	if !exists {
		return nil, ErrEntryNotFound
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// GetEntries retrieves the most recent entries for an account and kind
func (r *MemoryRepository) GetEntries(ctx context.Context, accountID string, kind entities.EconomyKind, limit int) ([]*entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[walletKey(accountID, kind)]

	// Most recent first
	result := make([]*entities.LedgerEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		entryCopy := *entries[i]
		result = append(result, &entryCopy)
	}

	return result, nil
}

// GetDailyUsage retrieves the capped usage recorded for a date
func (r *MemoryRepository) GetDailyUsage(ctx context.Context, accountID, dateKey string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.usage[accountID+"|"+dateKey], nil
}

// GetEntriesAfter retrieves entries for the archiver in ID order
func (r *MemoryRepository) GetEntriesAfter(ctx context.Context, afterID int64, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.LedgerEntry, 0, limit)
	for _, entry := range r.all {
		if len(result) >= limit {
			break
		}
		if entry.ID > afterID && !entry.CreatedAt.After(cutoff) {
			entryCopy := *entry
			result = append(result, &entryCopy)
		}
	}

	return result, nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}
