// Package session models the signed-in user and what that user may change.
package session

import (
	"errors"
	"strings"
	"sync"

	"invoicesync/pkg/models"
)

// ErrNotSignedIn is returned when an action needs a user and none is present.
var ErrNotSignedIn = errors.New("no user is signed in")

// User is an authenticated identity.
type User struct {
	Email string
}

// Gate reports session changes. Callbacks receive nil when the user signs out.
type Gate interface {
	OnSessionChange(callback func(*User))
}

// StaticGate is a Gate with a fixed user, set once at startup.
type StaticGate struct {
	mu   sync.Mutex
	user *User
	subs []func(*User)
}

// NewStaticGate creates a gate for email. An empty email means nobody is signed in.
func NewStaticGate(email string) *StaticGate {
	g := &StaticGate{}
	if email = strings.TrimSpace(email); email != "" {
		g.user = &User{Email: email}
	}
	return g
}

// OnSessionChange calls callback immediately with the current user and again on
// every later change.
func (g *StaticGate) OnSessionChange(callback func(*User)) {
	g.mu.Lock()
	g.subs = append(g.subs, callback)
	user := g.user
	g.mu.Unlock()
	callback(user)
}

// SignOut clears the user and notifies subscribers.
func (g *StaticGate) SignOut() {
	g.mu.Lock()
	g.user = nil
	subs := append([]func(*User){}, g.subs...)
	g.mu.Unlock()
	for _, cb := range subs {
		cb(nil)
	}
}

// Session is the signed-in user plus derived rights.
type Session struct {
	User  User
	Admin bool
}

// Policy decides rights from a list of admin emails.
type Policy struct {
	admins map[string]bool
}

// NewPolicy creates a policy. Emails compare case-insensitively.
func NewPolicy(adminEmails []string) *Policy {
	p := &Policy{admins: map[string]bool{}}
	for _, e := range adminEmails {
		if e = strings.TrimSpace(e); e != "" {
			p.admins[strings.ToLower(e)] = true
		}
	}
	return p
}

// SessionFor builds the session of a user. A nil user yields ErrNotSignedIn.
func (p *Policy) SessionFor(user *User) (*Session, error) {
	if user == nil || user.Email == "" {
		return nil, ErrNotSignedIn
	}
	return &Session{User: *user, Admin: p.admins[strings.ToLower(user.Email)]}, nil
}

// restrictedFields are editable by admins only.
var restrictedFields = map[models.Field]bool{
	models.FieldStore:         true,
	models.FieldDate:          true,
	models.FieldInvoiceNumber: true,
	models.FieldAmount:        true,
	models.FieldGST:           true,
}

// IsRestricted reports whether only admins may edit f.
func IsRestricted(f models.Field) bool {
	return restrictedFields[f]
}

// CanEdit reports whether the session may change f. Paid status and comments are
// open to every signed-in user.
func (s *Session) CanEdit(f models.Field) bool {
	if s == nil {
		return false
	}
	return s.Admin || !IsRestricted(f)
}

// CanCreate reports whether the session may add invoices.
func (s *Session) CanCreate() bool {
	return s != nil && s.Admin
}

// CanDelete reports whether the session may remove invoices.
func (s *Session) CanDelete() bool {
	return s != nil && s.Admin
}
