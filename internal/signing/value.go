package signing

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/esign"
)

// DateLayout is how date fields are serialised: ISO-8601 in UTC with milliseconds.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type valueKind int

const (
	kindText valueKind = iota + 1
	kindDate
)

// Value is a raw edit to a field. Build one with Text or Date.
type Value struct {
	kind valueKind
	text string
	date *time.Time
}

// Text is a value for name, text and signature fields.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Date is a value for date fields. nil clears the field.
func Date(t *time.Time) Value { return Value{kind: kindDate, date: t} }

func (v Value) String() string {
	switch v.kind {
	case kindText:
		return "text"
	case kindDate:
		return "date"
	default:
		return "invalid"
	}
}

// apply returns in with v applied, or false when v does not fit in's type.
func apply(in esign.Input, v Value) (esign.Input, bool) {
	switch {
	case in.Type.IsText() && v.kind == kindText:
		in.Value = v.text
		in.Completed = strings.TrimSpace(v.text) != ""
		return in, true

	case in.Type == esign.FieldDate && v.kind == kindDate:
		if v.date == nil {
			in.Value = ""
			in.Completed = false
			return in, true
		}
		in.Value = v.date.UTC().Format(DateLayout)
		in.Completed = true
		return in, true

	default:
		return in, false
	}
}
