package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LegacyCommentTimestamp marks comments migrated from the old plain-string format,
// whose real creation time is unknown.
const LegacyCommentTimestamp = "2023-01-01T00:00:00Z"

// DateLayout is the wire format of Record.Date.
const DateLayout = "2006-01-02"

// Comment is one entry of an invoice's comment log.
type Comment struct {
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"timestamp" yaml:"timestamp"` // ISO-8601, set once on creation
}

// Record is one invoice as held in the store.
type Record struct {
	// Core identifiers
	ID            string // Store-assigned key, never sent on the wire
	InvoiceNumber string // Human-readable invoice number

	// Grouping and dates
	Store string // Categorical grouping key, may be empty
	Date  string // YYYY-MM-DD, may be empty or malformed

	// Amounts
	Amount decimal.Decimal // Invoice amount in currency units
	GST    decimal.Decimal // Tax amount in currency units

	// Status
	Paid    bool      // Payment status flag
	Comment []Comment // Comment log, insertion order
}

// Collection maps record IDs to records. Iteration order is undefined.
type Collection map[string]*Record

// wireRecord is the JSON document shape used by the remote store.
type wireRecord struct {
	Store         string      `json:"store"`
	Date          string      `json:"date,omitempty"`
	InvoiceNumber string      `json:"invoiceNumber"`
	Amount        json.Number `json:"amount"`
	GST           json.Number `json:"gst"`
	Paid          bool        `json:"paid"`
	Comment       []Comment   `json:"comment"`
}

// MarshalJSON encodes the record in its wire shape, with amounts as JSON numbers.
func (r Record) MarshalJSON() ([]byte, error) {
	comments := r.Comment
	if comments == nil {
		comments = []Comment{}
	}
	return json.Marshal(wireRecord{
		Store:         r.Store,
		Date:          r.Date,
		InvoiceNumber: r.InvoiceNumber,
		Amount:        json.Number(r.Amount.String()),
		GST:           json.Number(r.GST.String()),
		Paid:          r.Paid,
		Comment:       comments,
	})
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Comment = CloneComments(r.Comment)
	return &c
}

// ParsedDate returns the calendar date of the record, if Date is parseable.
func (r *Record) ParsedDate() (time.Time, bool) {
	return ParseDate(r.Date)
}

// ParseDate accepts YYYY-MM-DD and full RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// CloneComments copies a comment slice. A nil input yields an empty slice.
func CloneComments(in []Comment) []Comment {
	out := make([]Comment, len(in))
	copy(out, in)
	return out
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for id, r := range c {
		out[id] = r.Clone()
	}
	return out
}

// NewRecord returns the default record used when an invoice is created.
func NewRecord(now time.Time) *Record {
	return &Record{
		Date:          now.Format(DateLayout),
		InvoiceNumber: fmt.Sprintf("NEW-%d", now.UnixMilli()),
		Amount:        decimal.Zero,
		GST:           decimal.Zero,
		Comment:       []Comment{},
	}
}
