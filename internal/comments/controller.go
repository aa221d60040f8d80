// Package comments manages the comment log of one invoice at a time.
//
// The controller is a small state machine:
//
//	closed --OpenFor--> Idle
//	Idle --BeginCompose--> Composing
//	Idle|Composing --BeginEdit(i)--> Editing(i)
//	Editing(i) --CancelEdit|SubmitEdit--> Idle
//	Idle|Composing --SubmitAdd--> Idle
//	any open state --DeleteAt(i)--> same state, or Idle if i was being edited
//
// Every change is written through the cache as a whole-log update of the comment
// field. A rejected write leaves both the log and the state as they were.
package comments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"invoicesync/internal/cache"
	"invoicesync/internal/logger"
	"invoicesync/internal/notify"
	"invoicesync/pkg/models"
)

var (
	// ErrNoRecordOpen is returned when no invoice has been opened.
	ErrNoRecordOpen = errors.New("no invoice is open for comments")

	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("action not allowed in current comment state")

	// ErrEmptyComment is returned when the submitted text is blank.
	ErrEmptyComment = errors.New("comment text is empty")

	// ErrIndexOutOfRange is returned for a comment position outside the log.
	ErrIndexOutOfRange = errors.New("comment index out of range")

	// ErrNotConfirmed is returned when the user declines a deletion.
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

// DeletePrompt is the question asked before a comment is removed.
const DeletePrompt = "Are you sure you want to delete this comment?"

// State of the controller.
type State int

const (
	StateClosed State = iota
	StateIdle
	StateComposing
	StateEditing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateEditing:
		return "editing"
	}
	return "closed"
}

// Store is the cache surface the controller writes through.
type Store interface {
	Get(id string) (*models.Record, bool)
	MutateField(ctx context.Context, id string, field models.Field, value any) error
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(prompt string) bool

// Controller edits the comment log of one invoice. It is safe for concurrent use,
// but actions are serialized.
type Controller struct {
	store    Store
	notifier notify.Notifier
	confirm  ConfirmFunc
	now      func() time.Time
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	recordID  string
	comments  []models.Comment
	editIndex int
	draft     string
}

// NewController creates a controller using the wall clock.
func NewController(store Store, notifier notify.Notifier, confirm ConfirmFunc) *Controller {
	return NewControllerWithClock(store, notifier, confirm, time.Now)
}

// NewControllerWithClock creates a controller with an explicit clock (for testing).
func NewControllerWithClock(store Store, notifier notify.Notifier, confirm ConfirmFunc, now func() time.Time) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	if confirm == nil {
		confirm = func(string) bool { return false }
	}
	return &Controller{
		store:     store,
		notifier:  notifier,
		confirm:   confirm,
		now:       now,
		log:       logger.WithComponent("comments"),
		editIndex: -1,
	}
}

// OpenFor loads the comment log of an invoice and enters Idle. Any draft in progress
// is discarded.
func (c *Controller) OpenFor(id string) error {
	const op = "OpenFor"

	record, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%s: %q: %w", op, id, cache.ErrRecordNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordID = id
	c.comments = models.CloneComments(record.Comment)
	c.toIdle()
	return nil
}

// Close forgets the open invoice.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	c.recordID = ""
	c.comments = nil
	c.editIndex = -1
	c.draft = ""
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RecordID returns the open invoice, or "" when closed.
func (c *Controller) RecordID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordID
}

// EditingIndex returns the position being edited.
func (c *Controller) EditingIndex() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editIndex, c.state == StateEditing
}

// Draft returns the text pre-filled for the comment being edited.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Comments returns a copy of the log in insertion order.
func (c *Controller) Comments() []models.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CloneComments(c.comments)
}

// SortedForDisplay returns the log newest first. Entries with equal timestamps keep
// their insertion order.
func (c *Controller) SortedForDisplay() []models.Comment {
	log := c.Comments()
	out := make([]models.Comment, len(log))
	for i, idx := range displayOrder(log) {
		out[i] = log[idx]
	}
	return out
}

// DisplayOrder returns positions in the log, newest first, as passed to BeginEdit
// and DeleteAt.
func (c *Controller) DisplayOrder() []int {
	return displayOrder(c.Comments())
}

func displayOrder(log []models.Comment) []int {
	order := make([]int, len(log))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return log[order[i]].Timestamp > log[order[j]].Timestamp
	})
	return order
}

// BeginCompose starts drafting a new comment.
func (c *Controller) BeginCompose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireState("BeginCompose", StateIdle); err != nil {
		return err
	}
	c.state = StateComposing
	return nil
}

// BeginEdit starts editing the comment at index. Its text becomes the draft.
func (c *Controller) BeginEdit(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireState("BeginEdit", StateIdle, StateComposing); err != nil {
		return err
	}
	if err := c.checkIndex("BeginEdit", index); err != nil {
		return err
	}
	c.state = StateEditing
	c.editIndex = index
	c.draft = c.comments[index].Text
	return nil
}

// CancelEdit abandons the edit in progress.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireState("CancelEdit", StateEditing); err != nil {
		return err
	}
	c.toIdle()
	return nil
}

// SubmitAdd appends a comment stamped with the current time.
func (c *Controller) SubmitAdd(ctx context.Context, text string) error {
	const op = "SubmitAdd"

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireState(op, StateIdle, StateComposing); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyComment)
	}
	if err := c.reload(op); err != nil {
		return err
	}

	updated := append(models.CloneComments(c.comments), models.Comment{
		Text:      text,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
	if err := c.write(ctx, op, updated); err != nil {
		return err
	}
	c.toIdle()
	return nil
}

// SubmitEdit replaces the text of the comment being edited. Its timestamp is kept.
func (c *Controller) SubmitEdit(ctx context.Context, text string) error {
	const op = "SubmitEdit"

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireState(op, StateEditing); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyComment)
	}
	if err := c.reload(op); err != nil {
		return err
	}
	if err := c.checkIndex(op, c.editIndex); err != nil {
		return err
	}

	updated := models.CloneComments(c.comments)
	updated[c.editIndex].Text = text
	if err := c.write(ctx, op, updated); err != nil {
		return err
	}
	c.toIdle()
	return nil
}

// DeleteAt removes the comment at index after the user confirms.
func (c *Controller) DeleteAt(ctx context.Context, index int) error {
	const op = "DeleteAt"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return fmt.Errorf("%s: %w", op, ErrNoRecordOpen)
	}
	if err := c.reload(op); err != nil {
		return err
	}
	if err := c.checkIndex(op, index); err != nil {
		return err
	}
	if !c.confirm(DeletePrompt) {
		return fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	updated := make([]models.Comment, 0, len(c.comments)-1)
	updated = append(updated, c.comments[:index]...)
	updated = append(updated, c.comments[index+1:]...)
	if err := c.write(ctx, op, updated); err != nil {
		return err
	}

	if c.state == StateEditing {
		switch {
		case index == c.editIndex:
			c.toIdle()
		case index < c.editIndex:
			c.editIndex--
		}
	}
	return nil
}

// reload replaces the local log with the cached one, which a refresh or another
// writer may have changed since OpenFor. c.mu must be held.
func (c *Controller) reload(op string) error {
	record, ok := c.store.Get(c.recordID)
	if !ok {
		return fmt.Errorf("%s: %q: %w", op, c.recordID, cache.ErrRecordNotFound)
	}
	c.comments = models.CloneComments(record.Comment)
	return nil
}

// write persists the whole log. c.mu must be held.
func (c *Controller) write(ctx context.Context, op string, updated []models.Comment) error {
	c.notifier.Notify(notify.MsgSaving, notify.LevelInfo)

	if err := c.store.MutateField(ctx, c.recordID, models.FieldComment, updated); err != nil {
		c.log.Error().
			Err(err).
			Str("id", c.recordID).
			Str("op", op).
			Msg("Comment update failed")
		c.notifier.Notify(notify.MsgSaveFailed, notify.LevelError)
		return fmt.Errorf("%s: %w", op, err)
	}

	c.comments = updated
	c.log.Debug().
		Str("id", c.recordID).
		Str("op", op).
		Int("comments", len(updated)).
		Msg("Comment log saved")
	c.notifier.Notify(notify.MsgSaved, notify.LevelSuccess)
	return nil
}

func (c *Controller) requireState(op string, allowed ...State) error {
	if c.state == StateClosed {
		return fmt.Errorf("%s: %w", op, ErrNoRecordOpen)
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, c.state)
}

func (c *Controller) checkIndex(op string, index int) error {
	if index < 0 || index >= len(c.comments) {
		return fmt.Errorf("%s: %w: %d (have %d)", op, ErrIndexOutOfRange, index, len(c.comments))
	}
	return nil
}

func (c *Controller) toIdle() {
	c.state = StateIdle
	c.editIndex = -1
	c.draft = ""
}
