package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/profilehub/internal/domain/user"
)

// UsersRepo is an in-process credential store. The mutex makes the
// email uniqueness check and the insert a single step, the same guarantee
// the unique index gives the postgres repo.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // {"id": user}
	byEmail map[string]string    // {"normalized email": id}
	roles   map[string]struct{}
	members map[string]map[string]struct{} // {"user id": {"role": {}}}
}

func NewUsersRepo(roles ...string) *UsersRepo {
	r := &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
		roles:   make(map[string]struct{}),
		members: make(map[string]map[string]struct{}),
	}
	for _, role := range roles {
		r.roles[role] = struct{}{}
	}
	return r
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	key := user.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[key]; taken {
		return user.ErrEmailTaken
	}

	u.NormalizedEmail = key
	r.items[u.ID] = u
	r.byEmail[key] = u.ID
	return nil
}

func (r *UsersRepo) Update(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[u.ID]
	if !ok {
		return user.ErrNotFound
	}

	// identity fields are owned by Create
	u.Email = current.Email
	u.UserName = current.UserName
	u.NormalizedEmail = current.NormalizedEmail
	r.items[u.ID] = u
	return nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) AddToRole(_ context.Context, userID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[userID]; !ok {
		return user.ErrNotFound
	}
	if _, ok := r.roles[role]; !ok {
		return user.ErrRoleNotFound
	}

	set, ok := r.members[userID]
	if !ok {
		set = make(map[string]struct{})
		r.members[userID] = set
	}
	set[role] = struct{}{}
	return nil
}

func (r *UsersRepo) Roles(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.members[userID]))
	for role := range r.members[userID] {
		out = append(out, role)
	}
	sort.Strings(out)
	return out, nil
}

// Count is used by tests to assert that failed flows created nothing.
func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
