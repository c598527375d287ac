package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/poiesic/ragbook/core"
)

// ErrNotAnObject is reported through Malformed when the model returns valid
// JSON that is not an object.
var ErrNotAnObject = errors.New("extraction output is not a JSON object")

// Extraction is the outcome of booking extraction. It is one of Parsed,
// NoData or Malformed.
type Extraction interface {
	extraction()
}

// Parsed carries booking details found in the text. At least one field is set.
type Parsed struct {
	Info core.BookingInfo
}

// NoData means the model found nothing: an empty response, an empty object
// or an object whose values are all null or empty.
type NoData struct{}

// Malformed means the model output could not be parsed as a JSON object.
type Malformed struct {
	Raw string
	Err error
}

func (Parsed) extraction()    {}
func (NoData) extraction()    {}
func (Malformed) extraction() {}

// BookingFrom returns the booking details of e and whether there were any.
func BookingFrom(e Extraction) (core.BookingInfo, bool) {
	if p, ok := e.(Parsed); ok {
		return p.Info, true
	}
	return core.BookingInfo{}, false
}

// Field names requested from the model.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldDate  = "date"
	FieldTime  = "time"
	FieldNotes = "additional_notes"
)

// ParseBookingResponse interprets raw model output as a booking extraction.
// It strips markdown code fences, repairs unquoted keys and coerces field
// values to strings. An email that is not a valid address is dropped, so the
// result can never complete a booking with it. It performs no I/O.
func ParseBookingResponse(raw string) Extraction {
	text := StripCodeFence(raw)
	if text == "" {
		return NoData{}
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		repaired := repairJSON(text)
		if rerr := json.Unmarshal([]byte(repaired), &value); rerr != nil {
			return Malformed{Raw: raw, Err: err}
		}
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return Malformed{Raw: raw, Err: ErrNotAnObject}
	}

	info := core.BookingInfo{
		Name:  stringField(fields[FieldName]),
		Email: NormalizeEmail(stringField(fields[FieldEmail])),
		Date:  stringField(fields[FieldDate]),
		Time:  stringField(fields[FieldTime]),
		Notes: stringField(fields[FieldNotes]),
	}
	if info.IsEmpty() {
		return NoData{}
	}
	return Parsed{Info: info}
}

// NormalizeEmail returns the bare address in s, or "" when s is not a valid
// email address with a dotted domain. "Ann <ann@x.com>" yields "ann@x.com".
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return ""
	}
	at := strings.LastIndexByte(addr.Address, '@')
	if at < 1 || !strings.Contains(addr.Address[at+1:], ".") {
		return ""
	}
	return addr.Address
}

// StripCodeFence removes a leading "```json" or "```" and a trailing "```".
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func stringField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
