// Package notify delivers short status messages to the user.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"invoicesync/internal/logger"
)

// Level classifies a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Status messages shown after user actions.
const (
	MsgSaving           = "Saving..."
	MsgSaved            = "Saved successfully!"
	MsgSaveFailed       = "Error saving change!"
	MsgPermissionDenied = "Permission denied. Only admins can edit these fields."
	MsgFetchFailed      = "Could not fetch invoices."
	MsgCreated          = "New invoice created!"
	MsgCreateFailed     = "Error creating new invoice!"
	MsgDeleted          = "Invoice successfully deleted!"
	MsgDeleteFailed     = "Error deleting invoice!"
)

// Notifier accepts status messages.
type Notifier interface {
	Notify(message string, level Level)
}

// Func adapts a function to Notifier.
type Func func(message string, level Level)

// Notify implements Notifier.
func (f Func) Notify(message string, level Level) {
	f(message, level)
}

// Discard drops every message.
var Discard Notifier = Func(func(string, Level) {})

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier logging under the "notify" component.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notify")}
}

// Notify implements Notifier. Errors are logged at error level, everything else at info.
func (n *LogNotifier) Notify(message string, level Level) {
	event := n.log.Info()
	if level == LevelError {
		event = n.log.Error()
	}
	event.Str("status", string(level)).Msg(message)
}

// WriterNotifier prints one line per message, e.g. "✓ Saved successfully!".
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier printing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify implements Notifier.
func (n *WriterNotifier) Notify(message string, level Level) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", prefix(level), message)
}

func prefix(level Level) string {
	switch level {
	case LevelSuccess:
		return "✓"
	case LevelError:
		return "✗"
	}
	return "•"
}

// Message is one recorded notification.
type Message struct {
	Text  string
	Level Level
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify implements Notifier.
func (r *Recorder) Notify(message string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: message, Level: level})
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Multi fans a message out to several notifiers in order.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(message string, level Level) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, level)
		}
	}
}
