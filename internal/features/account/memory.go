package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/tokenarena/internal/common"
)

// MemoryStore — хранилище в памяти процесса. Отдаёт и принимает копии,
// так что ссылки на внутренние записи наружу не утекают.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	journal  []LedgerEntry
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, acc *Account, entries []LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return common.ErrAccountExists
	}
	acc.Version = 1
	s.accounts[acc.ID] = acc.Clone()
	s.journal = append(s.journal, entries...)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, acc *Account, expectedVersion int64, entries []LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[acc.ID]
	if !ok {
		return common.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return common.ErrConcurrentModification
	}
	acc.Version = expectedVersion + 1
	s.accounts[acc.ID] = acc.Clone()
	s.journal = append(s.journal, entries...)
	return nil
}

func (s *MemoryStore) FindByRound(ctx context.Context, roundID string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if (acc.PendingRound != nil && acc.PendingRound.ID == roundID) ||
			(acc.LastRound != nil && acc.LastRound.ID == roundID) {
			return acc.Clone(), nil
		}
	}
	return nil, common.ErrRoundNotFound
}

func (s *MemoryStore) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, acc := range s.accounts {
		if acc.PendingRound != nil && acc.PendingRound.Expired(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) ListStakers(ctx context.Context, afterID string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, acc := range s.accounts {
		if len(acc.Positions) > 0 && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Entries возвращает проводки аккаунта в порядке записи.
func (s *MemoryStore) Entries(accountID string) []LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []LedgerEntry
	for _, e := range s.journal {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}
