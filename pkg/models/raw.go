package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is a record as fetched, before any coercion. Keys are wire field names.
type RawRecord map[string]json.RawMessage

// RawCollection is the undecoded form of a Collection.
type RawCollection map[string]RawRecord

// Decode coerces every raw record into a typed Record.
func (rc RawCollection) Decode() Collection {
	out := make(Collection, len(rc))
	for id, raw := range rc {
		out[id] = DecodeRecord(id, raw)
	}
	return out
}

// DecodeRecord builds a Record from loosely typed JSON. Amounts given as strings,
// booleans or null are coerced, falling back to zero. A comment value that is not an
// array of objects decodes as an empty log.
func DecodeRecord(id string, raw RawRecord) *Record {
	return &Record{
		ID:            id,
		Store:         looseString(raw[string(FieldStore)]),
		Date:          looseString(raw[string(FieldDate)]),
		InvoiceNumber: looseString(raw[string(FieldInvoiceNumber)]),
		Amount:        looseDecimal(raw[string(FieldAmount)]),
		GST:           looseDecimal(raw[string(FieldGST)]),
		Paid:          looseBool(raw[string(FieldPaid)]),
		Comment:       looseComments(raw[string(FieldComment)]),
	}
}

// IsNull reports whether a raw value is absent or JSON null.
func IsNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func looseString(v json.RawMessage) string {
	if IsNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func looseDecimal(v json.RawMessage) decimal.Decimal {
	if IsNull(v) {
		return decimal.Zero
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func looseBool(v json.RawMessage) bool {
	if IsNull(v) {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		parsed, _ := strconv.ParseBool(strings.TrimSpace(s))
		return parsed
	}
	return false
}

func looseComments(v json.RawMessage) []Comment {
	comments := []Comment{}
	if IsNull(v) {
		return comments
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(v, &entries); err != nil {
		return comments
	}
	for _, e := range entries {
		var c Comment
		if err := json.Unmarshal(e, &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}
	return comments
}
