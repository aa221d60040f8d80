// Package invoice ties the synchronization engine together for one signed-in user.
//
// A Manager owns the fetch, sanitize and load cycle, applies the edit policy of the
// current session, and reports every outcome to a notification sink:
//
//	Refresh      fetch with retry -> repair comment logs -> replace the cache
//	UpdateField  policy check -> optimistic cache write -> store patch
//	Create       admin only, default record -> store -> cache
//	Delete       admin only, confirmation -> store -> cache
//	View         filter, group and total the cached records
//
// Nothing runs until a user is present on the session gate.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"invoicesync/internal/cache"
	"invoicesync/internal/comments"
	"invoicesync/internal/fetch"
	"invoicesync/internal/logger"
	"invoicesync/internal/notify"
	"invoicesync/internal/sanitize"
	"invoicesync/internal/session"
	"invoicesync/internal/store"
	"invoicesync/internal/view"
	"invoicesync/pkg/models"
)

// DeletePrompt is the question asked before an invoice is removed.
const DeletePrompt = "Are you sure you want to delete this invoice? This action cannot be undone."

// LoadStatus tells "no data" apart from "still loading".
type LoadStatus int

const (
	StatusIdle LoadStatus = iota
	StatusLoading
	StatusLoaded
	StatusUnavailable
)

// String implements fmt.Stringer.
func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusUnavailable:
		return "unavailable"
	}
	return "idle"
}

// Fetcher reads the remote collection.
type Fetcher interface {
	FetchWithRetry(ctx context.Context) (models.RawCollection, error)
}

// Sanitizer repairs a freshly fetched collection in place.
type Sanitizer interface {
	Sanitize(ctx context.Context, collection models.RawCollection) sanitize.Result
}

// Config holds the tunables of a Manager built by NewManager.
type Config struct {
	Fetch       fetch.Config
	Sanitize    sanitize.Config
	AdminEmails []string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Fetch:    fetch.DefaultConfig(),
		Sanitize: sanitize.DefaultConfig(),
	}
}

// Dependencies are the collaborators of a Manager.
type Dependencies struct {
	Fetcher   Fetcher
	Sanitizer Sanitizer
	Cache     *cache.Cache
	Policy    *session.Policy
	Notifier  notify.Notifier
	Confirm   comments.ConfirmFunc
	Now       func() time.Time
}

// Manager runs invoice actions for the current session.
type Manager struct {
	fetcher   Fetcher
	sanitizer Sanitizer
	cache     *cache.Cache
	policy    *session.Policy
	notifier  notify.Notifier
	confirm   comments.ConfirmFunc
	now       func() time.Time
	amounts   *AmountCheck
	log       zerolog.Logger

	mu      sync.RWMutex
	session *session.Session
	status  LoadStatus
}

// NewManager wires a Manager on top of a store.
func NewManager(svc store.Service, cfg Config, notifier notify.Notifier, confirm comments.ConfirmFunc) *Manager {
	return NewManagerWithDeps(Dependencies{
		Fetcher:   fetch.NewFetcher(svc, cfg.Fetch),
		Sanitizer: sanitize.New(svc, cfg.Sanitize),
		Cache:     cache.New(svc),
		Policy:    session.NewPolicy(cfg.AdminEmails),
		Notifier:  notifier,
		Confirm:   confirm,
	})
}

// NewManagerWithDeps creates a Manager with explicit collaborators (for testing).
func NewManagerWithDeps(deps Dependencies) *Manager {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Confirm == nil {
		deps.Confirm = func(string) bool { return false }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy == nil {
		deps.Policy = session.NewPolicy(nil)
	}
	return &Manager{
		fetcher:   deps.Fetcher,
		sanitizer: deps.Sanitizer,
		cache:     deps.Cache,
		policy:    deps.Policy,
		notifier:  deps.Notifier,
		confirm:   deps.Confirm,
		now:       deps.Now,
		amounts:   NewAmountCheck(),
		log:       logger.WithComponent("invoice"),
	}
}

// Bind follows the session gate. Signing out drops the session and the load status.
func (m *Manager) Bind(gate session.Gate) {
	gate.OnSessionChange(func(user *session.User) {
		s, err := m.policy.SessionFor(user)

		m.mu.Lock()
		m.session = s
		if err != nil {
			m.status = StatusIdle
		}
		m.mu.Unlock()

		if err != nil {
			m.log.Info().Msg("Session ended")
			return
		}
		log := logger.WithUserID(m.log, s.User.Email)
		log.Info().
			Bool("admin", s.Admin).
			Msg("Session started")
	})
}

// Session returns the current session, or nil.
func (m *Manager) Session() *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Status returns the load status.
func (m *Manager) Status() LoadStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s LoadStatus) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// begin checks for a session and returns a logger tagged with a fresh request id.
func (m *Manager) begin(op string) (*session.Session, zerolog.Logger, error) {
	s := m.Session()
	if s == nil {
		return nil, m.log, fmt.Errorf("%s: %w", op, session.ErrNotSignedIn)
	}
	l := logger.WithRequestID(m.log, uuid.NewString())
	l = logger.WithUserID(l, s.User.Email)
	return s, l.With().Str("op", op).Logger(), nil
}

// Refresh fetches the collection, repairs it and replaces the cache. On total fetch
// failure the user is told, the previous cache stays as it was, and ErrNoData is
// returned.
func (m *Manager) Refresh(ctx context.Context) error {
	const op = "Refresh"

	_, log, err := m.begin(op)
	if err != nil {
		return err
	}

	m.setStatus(StatusLoading)
	start := m.now()

	raw, err := m.fetcher.FetchWithRetry(ctx)
	if err != nil {
		m.setStatus(StatusUnavailable)
		log.Error().Err(err).Msg("Could not fetch invoices")
		m.notifier.Notify(notify.MsgFetchFailed, notify.LevelError)
		return fmt.Errorf("%s: %w: %w", op, ErrNoData, err)
	}

	result := m.sanitizer.Sanitize(ctx, raw)
	m.cache.Load(raw.Decode())
	m.setStatus(StatusLoaded)

	log.Info().
		Int("records", m.cache.Len()).
		Int("sanitized", len(result.Corrected)).
		Int("sanitize_persist_failed", len(result.PersistFailed)).
		Dur("duration", m.now().Sub(start)).
		Msg("Invoices loaded")
	return nil
}

// UpdateField changes one field of one invoice on behalf of the session user.
func (m *Manager) UpdateField(ctx context.Context, id string, field models.Field, value any) error {
	const op = "UpdateField"

	s, log, err := m.begin(op)
	if err != nil {
		return err
	}
	if !s.CanEdit(field) {
		log.Warn().Str("id", id).Str("field", string(field)).Msg("Edit refused")
		m.notifier.Notify(notify.MsgPermissionDenied, notify.LevelError)
		return &PermissionError{Op: op, Field: field, User: s.User.Email}
	}

	m.notifier.Notify(notify.MsgSaving, notify.LevelInfo)
	if err := m.cache.MutateField(ctx, id, field, value); err != nil {
		log.Error().Err(err).Str("id", id).Str("field", string(field)).Msg("Save failed")
		m.notifier.Notify(notify.MsgSaveFailed, notify.LevelError)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("id", id).Str("field", string(field)).Msg("Field saved")
	m.notifier.Notify(notify.MsgSaved, notify.LevelSuccess)
	return nil
}

// UpdateFieldText parses user input for field and saves it.
func (m *Manager) UpdateFieldText(ctx context.Context, id string, field models.Field, text string) error {
	const op = "UpdateFieldText"

	value, err := models.ParseFieldValue(field, text)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return m.UpdateField(ctx, id, field, value)
}

// Create adds a new invoice with today's date and a generated invoice number.
func (m *Manager) Create(ctx context.Context) (string, error) {
	const op = "Create"

	s, log, err := m.begin(op)
	if err != nil {
		return "", err
	}
	if !s.CanCreate() {
		log.Warn().Msg("Create refused")
		m.notifier.Notify(notify.MsgPermissionDenied, notify.LevelError)
		return "", &PermissionError{Op: op, User: s.User.Email}
	}

	record := models.NewRecord(m.now())
	id, err := m.cache.Create(ctx, record)
	if err != nil {
		log.Error().Err(err).Msg("Create failed")
		m.notifier.Notify(notify.MsgCreateFailed, notify.LevelError)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("id", id).Str("invoice_number", record.InvoiceNumber).Msg("Invoice created")
	m.notifier.Notify(notify.MsgCreated, notify.LevelSuccess)
	return id, nil
}

// Delete removes an invoice after the user confirms.
func (m *Manager) Delete(ctx context.Context, id string) error {
	const op = "Delete"

	s, log, err := m.begin(op)
	if err != nil {
		return err
	}
	if !s.CanDelete() {
		log.Warn().Str("id", id).Msg("Delete refused")
		m.notifier.Notify(notify.MsgPermissionDenied, notify.LevelError)
		return &PermissionError{Op: op, User: s.User.Email}
	}
	if _, ok := m.cache.Get(id); !ok {
		return fmt.Errorf("%s: %q: %w", op, id, cache.ErrRecordNotFound)
	}
	if !m.confirm(DeletePrompt) {
		log.Info().Str("id", id).Msg("Delete cancelled")
		return fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	if err := m.cache.Remove(ctx, id); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Delete failed")
		m.notifier.Notify(notify.MsgDeleteFailed, notify.LevelError)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info().Str("id", id).Msg("Invoice deleted")
	m.notifier.Notify(notify.MsgDeleted, notify.LevelSuccess)
	return nil
}

// Record returns a copy of one cached invoice.
func (m *Manager) Record(id string) (*models.Record, error) {
	const op = "Record"

	r, ok := m.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, id, cache.ErrRecordNotFound)
	}
	return r, nil
}

// AmountWarnings returns advisory warnings about the amounts of a cached invoice.
func (m *Manager) AmountWarnings(id string) []string {
	r, ok := m.cache.Get(id)
	if !ok {
		return nil
	}
	return m.amounts.Warnings(r)
}

// View filters, groups and totals the cached invoices.
func (m *Manager) View(criteria view.Criteria) view.ViewModel {
	return view.Build(m.cache.Snapshot(), criteria)
}

// Options lists the filter choices for the cached invoices.
func (m *Manager) Options() view.FilterOptions {
	return view.Options(m.cache.Snapshot())
}

// Comments returns a comment controller writing through the cache on behalf of the
// session user.
func (m *Manager) Comments() *comments.Controller {
	return comments.NewControllerWithClock(&commentStore{m: m}, m.notifier, m.confirm, m.now)
}

// commentStore refuses comment writes without a session.
type commentStore struct {
	m *Manager
}

func (cs *commentStore) Get(id string) (*models.Record, bool) {
	return cs.m.cache.Get(id)
}

func (cs *commentStore) MutateField(ctx context.Context, id string, field models.Field, value any) error {
	s, log, err := cs.m.begin("Comment")
	if err != nil {
		return err
	}
	if !s.CanEdit(field) {
		return &PermissionError{Op: "Comment", Field: field, User: s.User.Email}
	}
	if err := cs.m.cache.MutateField(ctx, id, field, value); err != nil {
		return err
	}
	log.Info().Str("id", id).Msg("Comments saved")
	return nil
}

// IsNoData reports whether err is a total fetch failure.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
