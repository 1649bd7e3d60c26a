package streak

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	streakRepo "github.com/fadedpez/caminata/pkg/repositories/streak"
)

var (
	ErrInvalidDate    = errors.New("date must be formatted YYYY-MM-DD")
	ErrNegativeStreak = errors.New("streak values cannot be negative")
)

const dateFormat = "2006-01-02"

// Result is the streak state after a record or seed call
type Result struct {
	Current        int
	Longest        int
	LastActiveDate string
	Idempotent     bool // True when the call changed nothing
}

// Service tracks consecutive-day activity per account. Mutations to the
// same account are serialized with a per-account lock; the repository
// only needs Get and Save.
//
// The lock map keeps one entry per account seen since startup and is
// never pruned. At a few dozen bytes per account that is acceptable here;
// revisit with a sharded map if account counts grow past the millions.
type Service struct {
	repo  streakRepo.Repository
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new streak service
func NewService(repo streakRepo.Repository) *Service {
	return &Service{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

// Record registers activity on the given date.
//
// Same-day and backdated reports are idempotent no-ops: an out-of-order
// activity report never extends or breaks the streak retroactively.
func (s *Service) Record(ctx context.Context, accountID, date string) (*Result, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAccount(accountID)
	defer unlock()

	existing, err := s.repo.GetStreak(ctx, accountID)
	if errors.Is(err, streakRepo.ErrStreakNotFound) {
		created := &entities.Streak{
			AccountID:      accountID,
			Current:        1,
			Longest:        1,
			LastActiveDate: date,
		}
		if err := s.repo.SaveStreak(ctx, created); err != nil {
			return nil, err
		}
		return resultFrom(created, false), nil
	}
	if err != nil {
		return nil, err
	}

	if existing.LastActiveDate != "" {
		last, err := parseDate(existing.LastActiveDate)
		if err != nil {
			return nil, err
		}
		if !day.After(last) {
			return resultFrom(existing, true), nil
		}
		if last.AddDate(0, 0, 1).Equal(day) {
			existing.Current++
		} else {
			existing.Current = 1
		}
	} else {
		// Seeded without a date; this is the first dated activity
		existing.Current = max(existing.Current, 1)
	}

	if existing.Current > existing.Longest {
		existing.Longest = existing.Current
	}
	existing.LastActiveDate = date

	if err := s.repo.SaveStreak(ctx, existing); err != nil {
		return nil, err
	}
	return resultFrom(existing, false), nil
}

// Seed imports a client-tracked streak that predates server tracking.
// The merge is monotonic: every field only moves up, the later date wins,
// and repeated seeding can never regress state.
func (s *Service) Seed(ctx context.Context, accountID string, current, longest int, lastActiveDate string) (*Result, error) {
	if current < 0 || longest < 0 {
		return nil, ErrNegativeStreak
	}
	if lastActiveDate != "" {
		if _, err := parseDate(lastActiveDate); err != nil {
			return nil, err
		}
	}

	unlock := s.lockAccount(accountID)
	defer unlock()

	existing, err := s.repo.GetStreak(ctx, accountID)
	if errors.Is(err, streakRepo.ErrStreakNotFound) {
		existing = &entities.Streak{AccountID: accountID}
	} else if err != nil {
		return nil, err
	}

	merged := mergeSeed(existing, current, longest, lastActiveDate)
	if merged.Current == existing.Current &&
		merged.Longest == existing.Longest &&
		merged.LastActiveDate == existing.LastActiveDate {
		return resultFrom(existing, true), nil
	}

	if err := s.repo.SaveStreak(ctx, merged); err != nil {
		return nil, err
	}
	return resultFrom(merged, false), nil
}

// Get retrieves the streak state; an account never recorded reads as zero
func (s *Service) Get(ctx context.Context, accountID string) (*entities.Streak, error) {
	streak, err := s.repo.GetStreak(ctx, accountID)
	if errors.Is(err, streakRepo.ErrStreakNotFound) {
		return &entities.Streak{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	return streak, nil
}

// mergeSeed merges a seed request into the existing record, taking the
// max of each counter and the later of the two dates.
func mergeSeed(existing *entities.Streak, current, longest int, lastActiveDate string) *entities.Streak {
	merged := &entities.Streak{
		AccountID:      existing.AccountID,
		Current:        max(existing.Current, current),
		Longest:        max(existing.Longest, longest),
		LastActiveDate: existing.LastActiveDate,
	}
	if merged.Longest < merged.Current {
		merged.Longest = merged.Current
	}
	// Date keys compare lexicographically
	if lastActiveDate > merged.LastActiveDate {
		merged.LastActiveDate = lastActiveDate
	}
	return merged
}

// lockAccount serializes mutations per account
func (s *Service) lockAccount(accountID string) func() {
	s.mu.Lock()
	lock, exists := s.locks[accountID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func resultFrom(streak *entities.Streak, idempotent bool) *Result {
	return &Result{
		Current:        streak.Current,
		Longest:        streak.Longest,
		LastActiveDate: streak.LastActiveDate,
		Idempotent:     idempotent,
	}
}

func parseDate(date string) (time.Time, error) {
	parsed, err := time.Parse(dateFormat, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return parsed, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
