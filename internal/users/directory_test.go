package users

import (
	"context"
	"errors"
	"testing"

	"travelshare/internal/core"
)

type recorder struct {
	seen []int64
	err  error
}

func (r *recorder) ProfileUpdated(_ context.Context, u core.User) error {
	r.seen = append(r.seen, u.ID)
	return r.err
}

type funcObserver func(context.Context, core.User) error

func (f funcObserver) ProfileUpdated(ctx context.Context, u core.User) error { return f(ctx, u) }

func TestSeedLookups(t *testing.T) {
	d := NewDirectory(nil, SeedUsers()...)

	all := d.All()
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Fatalf("unexpected users: %+v", all)
	}
	if u, ok := d.ByID(2); !ok || u.FullName() != "Ana Kovač" || u.Role != RoleAdministrator {
		t.Fatalf("ByID(2) = %+v, %v", u, ok)
	}
	if u, ok := d.ByEmail("IVAN.NOVAK@travelshare.com"); !ok || u.ID != 3 {
		t.Fatalf("ByEmail case-insensitive lookup failed: %+v", u)
	}
	if _, ok := d.ByID(99); ok {
		t.Fatalf("unexpected user 99")
	}
	if !d.ResetPassword("student@travelshare.com") || d.ResetPassword("nobody@travelshare.com") {
		t.Fatalf("ResetPassword mismatch")
	}
}

func TestUpdateProfileNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(nil, SeedUsers()...)
	r := &recorder{}
	if err := d.Subscribe(r); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := d.Subscribe(r); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	_ = d.Subscribe(NewProfileChangeLogger(nil))

	u, _ := d.ByID(1)
	u.LastName = "Horvatić"
	if !d.UpdateProfile(ctx, u) {
		t.Fatalf("update failed")
	}
	if len(r.seen) != 1 || r.seen[0] != 1 {
		t.Fatalf("duplicate subscription not collapsed: %v", r.seen)
	}
	if got, _ := d.ByID(1); got.LastName != "Horvatić" {
		t.Fatalf("update not stored: %+v", got)
	}

	if d.UpdateProfile(ctx, core.User{ID: 42}) {
		t.Fatalf("unknown user should not update")
	}
	if len(r.seen) != 1 {
		t.Fatalf("observer called for failed update")
	}

	d.Unsubscribe(r)
	d.UpdateProfile(ctx, u)
	if len(r.seen) != 1 {
		t.Fatalf("observer called after unsubscribe")
	}
}

func TestObserverErrorDoesNotUndoUpdate(t *testing.T) {
	d := NewDirectory(nil, SeedUsers()...)
	_ = d.Subscribe(&recorder{err: errors.New("boom")})
	u, _ := d.ByID(3)
	u.Email = "ivan@travelshare.com"
	if !d.UpdateProfile(context.Background(), u) {
		t.Fatalf("update failed")
	}
	if _, ok := d.ByEmail("ivan@travelshare.com"); !ok {
		t.Fatalf("update lost after observer error")
	}
}

func TestSubscribeRejectsFuncs(t *testing.T) {
	d := NewDirectory(nil)
	f := funcObserver(func(context.Context, core.User) error { return nil })
	if err := d.Subscribe(f); !errors.Is(err, ErrObserverNotComparable) {
		t.Fatalf("expected ErrObserverNotComparable, got %v", err)
	}
	d.Unsubscribe(f)
}

type taggedObserver struct {
	tag any
}

func (taggedObserver) ProfileUpdated(context.Context, core.User) error { return nil }

func TestSubscribeChecksDynamicValues(t *testing.T) {
	cases := []struct {
		name    string
		obs     Observer
		wantErr error
	}{
		{"func in interface field", taggedObserver{tag: func() {}}, ErrObserverNotComparable},
		{"slice in interface field", taggedObserver{tag: []int{1}}, ErrObserverNotComparable},
		{"int in interface field", taggedObserver{tag: 7}, nil},
		{"nil interface field", taggedObserver{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDirectory(nil)
			if err := d.Subscribe(tc.obs); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Subscribe err = %v, want %v", err, tc.wantErr)
			}
			d.Unsubscribe(tc.obs)
			d.mu.Lock()
			n := len(d.observers)
			d.mu.Unlock()
			if n != 0 {
				t.Fatalf("%d observers left after Unsubscribe", n)
			}
		})
	}
}
