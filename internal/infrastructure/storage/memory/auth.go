package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/auth"
)

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	store *Store
}

// Users returns the user repository.
func (s *Store) Users() *UserRepo { return &UserRepo{store: s} }

var (
	_ auth.UserRepository    = (*UserRepo)(nil)
	_ auth.SessionRepository = (*SessionRepo)(nil)
)

func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	return r.store.update(ctx, func(d *dataset) error {
		for _, u := range d.users {
			if u.Email == user.Email {
				return apperror.NewDuplicate("user", "email", user.Email)
			}
		}
		d.users[user.ID] = *user
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	var out *auth.User
	err := r.store.view(ctx, func(d *dataset) error {
		u, ok := d.users[userID]
		if !ok {
			return apperror.NewNotFound("user", userID)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	var out *auth.User
	err := r.store.view(ctx, func(d *dataset) error {
		for _, u := range d.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return apperror.NewNotFound("user", email)
	})
	return out, err
}

func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.users[user.ID]; !ok {
			return apperror.NewNotFound("user", user.ID)
		}
		for _, u := range d.users {
			if u.ID != user.ID && u.Email == user.Email {
				return apperror.NewDuplicate("user", "email", user.Email)
			}
		}
		user.UpdatedAt = time.Now().UTC()
		d.users[user.ID] = *user
		return nil
	})
}

func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []auth.User
	err := r.store.view(ctx, func(d *dataset) error {
		for _, u := range d.users {
			if u.TenantID == nil || *u.TenantID != filter.TenantID {
				continue
			}
			if filter.LocationID != nil && (u.LocationID == nil || *u.LocationID != *filter.LocationID) {
				continue
			}
			if filter.Role != "" && u.Role != filter.Role {
				continue
			}
			if search != "" &&
				!strings.Contains(u.Email, search) &&
				!strings.Contains(strings.ToLower(u.Name), search) {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := len(out)
	lo, hi := page(total, filter.Limit, filter.Offset)
	return out[lo:hi], total, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// SessionRepo implements auth.SessionRepository.
type SessionRepo struct {
	store *Store
}

// Sessions returns the session store.
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{store: s} }

func (r *SessionRepo) Create(ctx context.Context, session *auth.Session) error {
	return r.store.update(ctx, func(d *dataset) error {
		if _, ok := d.users[session.UserID]; !ok {
			return apperror.NewNotFound("user", session.UserID)
		}
		d.sessions[session.ID] = *session
		return nil
	})
}

func (r *SessionRepo) Get(ctx context.Context, sessionID id.ID) (*auth.Session, error) {
	var out *auth.Session
	err := r.store.view(ctx, func(d *dataset) error {
		s, ok := d.sessions[sessionID]
		if !ok {
			return apperror.NewNotFound("session", sessionID)
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *SessionRepo) SetContext(ctx context.Context, sessionID id.ID, tenantID, locationID *id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		s, ok := d.sessions[sessionID]
		if !ok {
			return apperror.NewNotFound("session", sessionID)
		}
		s.SelectedTenantID = tenantID
		s.SelectedLocationID = locationID
		d.sessions[sessionID] = s
		return nil
	})
}

func (r *SessionRepo) Revoke(ctx context.Context, sessionID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		s, ok := d.sessions[sessionID]
		if !ok {
			return apperror.NewNotFound("session", sessionID)
		}
		now := time.Now().UTC()
		s.RevokedAt = &now
		d.sessions[sessionID] = s
		return nil
	})
}

func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID id.ID) error {
	return r.store.update(ctx, func(d *dataset) error {
		now := time.Now().UTC()
		for sid, s := range d.sessions {
			if s.UserID == userID && s.RevokedAt == nil {
				s.RevokedAt = &now
				d.sessions[sid] = s
			}
		}
		return nil
	})
}

func (r *SessionRepo) CleanupExpired(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.store.update(ctx, func(d *dataset) error {
		for sid, s := range d.sessions {
			if s.ExpiresAt.Before(cutoff) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
				delete(d.sessions, sid)
				n++
			}
		}
		return nil
	})
	return n, err
}
