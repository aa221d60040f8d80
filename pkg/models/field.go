package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownField is returned for field names outside the record schema.
	ErrUnknownField = errors.New("unknown invoice field")

	// ErrInvalidFieldValue is returned when a value has the wrong type for its field
	// or cannot be parsed.
	ErrInvalidFieldValue = errors.New("invalid value for invoice field")
)

// Field names a single attribute of a Record, as spelled on the wire.
type Field string

const (
	FieldStore         Field = "store"
	FieldDate          Field = "date"
	FieldInvoiceNumber Field = "invoiceNumber"
	FieldAmount        Field = "amount"
	FieldGST           Field = "gst"
	FieldPaid          Field = "paid"
	FieldComment       Field = "comment"
)

// Fields lists every record field in display order.
var Fields = []Field{FieldStore, FieldDate, FieldInvoiceNumber, FieldAmount, FieldGST, FieldPaid, FieldComment}

// ParseField resolves a wire field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Get returns the current value of a field. Comments are returned as a copy.
func (r *Record) Get(f Field) (any, error) {
	switch f {
	case FieldStore:
		return r.Store, nil
	case FieldDate:
		return r.Date, nil
	case FieldInvoiceNumber:
		return r.InvoiceNumber, nil
	case FieldAmount:
		return r.Amount, nil
	case FieldGST:
		return r.GST, nil
	case FieldPaid:
		return r.Paid, nil
	case FieldComment:
		return CloneComments(r.Comment), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// Set assigns a field. The value must already have the field's Go type:
// string, decimal.Decimal, bool or []Comment.
func (r *Record) Set(f Field, value any) error {
	switch f {
	case FieldStore, FieldDate, FieldInvoiceNumber:
		s, ok := value.(string)
		if !ok {
			return invalidValue(f, value)
		}
		switch f {
		case FieldStore:
			r.Store = s
		case FieldDate:
			r.Date = s
		default:
			r.InvoiceNumber = s
		}
	case FieldAmount, FieldGST:
		d, ok := value.(decimal.Decimal)
		if !ok {
			return invalidValue(f, value)
		}
		if f == FieldAmount {
			r.Amount = d
		} else {
			r.GST = d
		}
	case FieldPaid:
		b, ok := value.(bool)
		if !ok {
			return invalidValue(f, value)
		}
		r.Paid = b
	case FieldComment:
		c, ok := value.([]Comment)
		if !ok {
			return invalidValue(f, value)
		}
		r.Comment = CloneComments(c)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

func invalidValue(f Field, value any) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrInvalidFieldValue, f, value)
}

// WireValue converts a field value into the form sent in a PATCH body.
// Decimals become JSON numbers instead of quoted strings.
func WireValue(f Field, value any) any {
	switch v := value.(type) {
	case decimal.Decimal:
		return json.Number(v.String())
	case []Comment:
		if v == nil {
			return []Comment{}
		}
		return v
	}
	return value
}

// ParseFieldValue converts user-entered text into the typed value for a field.
// Comments cannot be set from plain text.
func ParseFieldValue(f Field, text string) (any, error) {
	switch f {
	case FieldStore, FieldInvoiceNumber:
		return text, nil
	case FieldDate:
		text = strings.TrimSpace(text)
		if text != "" {
			if _, ok := ParseDate(text); !ok {
				return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidFieldValue, text)
			}
		}
		return text, nil
	case FieldAmount, FieldGST:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not a number", ErrInvalidFieldValue, f, text)
		}
		return d, nil
	case FieldPaid:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("%w: paid %q is not a boolean", ErrInvalidFieldValue, text)
		}
		return b, nil
	case FieldComment:
		return nil, fmt.Errorf("%w: comments are edited through the comment commands", ErrInvalidFieldValue)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
}
