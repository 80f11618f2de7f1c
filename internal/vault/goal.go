package vault

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"vaultbot/internal/domain"
)

// GoalState is the mutable vault goal plus the set of handles allowed to change
// it. Only the owner may extend that set.
type GoalState struct {
	mu         sync.RWMutex
	goal       decimal.Decimal
	ownerID    int64
	authorized map[string]struct{}
}

// NewGoalState seeds the goal and the authorized handles. Handles are compared
// case-insensitively and must start with "@".
func NewGoalState(goal decimal.Decimal, ownerID int64, authorized []string) *GoalState {
	s := &GoalState{goal: goal, ownerID: ownerID, authorized: map[string]struct{}{}}
	for _, h := range normalizeHandles(authorized) {
		s.authorized[h] = struct{}{}
	}
	return s
}

// Goal returns the current goal.
func (s *GoalState) Goal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goal
}

// CanSetGoal reports whether handle may change the goal.
func (s *GoalState) CanSetGoal(handle string) bool {
	if handle == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authorized[strings.ToLower(handle)]
	return ok
}

// SetGoal replaces the goal on behalf of handle.
func (s *GoalState) SetGoal(handle string, goal decimal.Decimal) error {
	if !s.CanSetGoal(handle) {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	s.goal = goal
	s.mu.Unlock()
	return nil
}

// IsOwner reports whether userID is the bot owner.
func (s *GoalState) IsOwner(userID int64) bool {
	return userID != 0 && userID == s.ownerID
}

// SetAuthorized adds handles to the authorized set on behalf of userID and
// returns the handles that were accepted. Existing handles stay authorized.
// Tokens without a leading "@" are ignored.
func (s *GoalState) SetAuthorized(userID int64, handles []string) ([]string, error) {
	if !s.IsOwner(userID) {
		return nil, domain.ErrUnauthorized
	}
	accepted := normalizeHandles(handles)
	if len(accepted) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	for _, h := range accepted {
		s.authorized[h] = struct{}{}
	}
	s.mu.Unlock()
	return accepted, nil
}

// Authorized lists the authorized handles in sorted order.
func (s *GoalState) Authorized() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.authorized))
	for h := range s.authorized {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func normalizeHandles(raw []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, h := range raw {
		h = strings.ToLower(strings.TrimSpace(h))
		if len(h) < 2 || !strings.HasPrefix(h, "@") {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
