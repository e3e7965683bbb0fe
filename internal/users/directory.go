// Package users is the in-memory user directory and its profile observers.
package users

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"travelshare/internal/core"
	applog "travelshare/internal/log"
)

const (
	RoleStudent       = "Student"
	RoleAdministrator = "Administrator"
)

// ErrObserverNotComparable is returned by Subscribe for observers that cannot
// be told apart, such as plain funcs.
var ErrObserverNotComparable = errors.New("observer type is not comparable")

// Observer is told about every successful profile update.
type Observer interface {
	ProfileUpdated(ctx context.Context, u core.User) error
}

// Directory holds users keyed by id.
type Directory struct {
	mu        sync.RWMutex
	users     map[int64]core.User
	observers []Observer
	logger    *applog.Logger
}

// SeedUsers are the demo accounts every fresh directory starts with.
func SeedUsers() []core.User {
	return []core.User{
		{ID: 1, Email: "student@travelshare.com", FirstName: "Marko", LastName: "Horvat", Role: RoleStudent},
		{ID: 2, Email: "admin@travelshare.com", FirstName: "Ana", LastName: "Kovač", Role: RoleAdministrator},
		{ID: 3, Email: "ivan.novak@travelshare.com", FirstName: "Ivan", LastName: "Novak", Role: RoleStudent},
	}
}

func NewDirectory(logger *applog.Logger, seed ...core.User) *Directory {
	if logger == nil {
		logger = applog.Discard()
	}
	d := &Directory{
		users:  make(map[int64]core.User, len(seed)),
		logger: logger.WithComponent(applog.ComponentUsers),
	}
	for _, u := range seed {
		d.users[u.ID] = u
	}
	return d
}

// All returns every user ordered by id.
func (d *Directory) All() []core.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Directory) ByID(id int64) (core.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// ByEmail matches case-insensitively.
func (d *Directory) ByEmail(email string) (core.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return core.User{}, false
}

// ResetPassword reports whether a user with that email exists. Nothing is
// sent.
func (d *Directory) ResetPassword(email string) bool {
	_, ok := d.ByEmail(email)
	return ok
}

// UpdateProfile replaces the stored user with the same id and then notifies
// observers in subscription order. It reports false for unknown users.
// Observer errors are logged and do not undo the update.
func (d *Directory) UpdateProfile(ctx context.Context, u core.User) bool {
	d.mu.Lock()
	if _, ok := d.users[u.ID]; !ok {
		d.mu.Unlock()
		return false
	}
	d.users[u.ID] = u
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()

	for _, o := range observers {
		if err := o.ProfileUpdated(ctx, u); err != nil {
			d.logger.WarnContext(ctx, "Profile observer failed",
				applog.NewFields().WithUser(u.ID).WithError(err).ToSlice()...)
		}
	}
	return true
}

// Subscribe adds o unless the same observer is already subscribed.
func (d *Directory) Subscribe(o Observer) error {
	if o == nil || !reflect.ValueOf(o).Comparable() {
		return ErrObserverNotComparable
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.observers {
		if existing == o {
			return nil
		}
	}
	d.observers = append(d.observers, o)
	return nil
}

// Unsubscribe removes o; unknown observers are ignored.
func (d *Directory) Unsubscribe(o Observer) {
	if o == nil || !reflect.ValueOf(o).Comparable() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.observers {
		if existing == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

// ProfileChangeLogger logs every profile update.
type ProfileChangeLogger struct {
	logger *applog.Logger
}

func NewProfileChangeLogger(logger *applog.Logger) *ProfileChangeLogger {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ProfileChangeLogger{logger: logger.WithComponent(applog.ComponentUsers)}
}

func (l *ProfileChangeLogger) ProfileUpdated(ctx context.Context, u core.User) error {
	l.logger.InfoContext(ctx, "Profile updated", applog.FieldUserID, u.ID, "email", u.Email)
	return nil
}
