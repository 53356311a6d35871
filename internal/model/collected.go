package model

import (
	"sort"
	"strings"
	"time"
)

// SourceState is the outcome of one source for one lead.
type SourceState string

const (
	SourceSuccess SourceState = "success"
	SourcePartial SourceState = "partial"
	SourceFailed  SourceState = "failed"
	SourceSkipped SourceState = "skipped"
)

// Field identifies one reconciled contact field.
type Field string

const (
	FieldEmail    Field = "email"
	FieldPhone    Field = "phone"
	FieldWhatsApp Field = "whatsapp"
	FieldWebsite  Field = "website"
)

// ContactFields lists the reconciled fields in their canonical order.
var ContactFields = []Field{FieldEmail, FieldPhone, FieldWhatsApp, FieldWebsite}

// SourceStatus records how a single source behaved for a lead.
type SourceStatus struct {
	Source   string        `json:"source"`
	State    SourceState   `json:"state"`
	Attempts int           `json:"attempts"`
	Fields   int           `json:"fields"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// RawCollectedData is the merged output of every source for one lead.
// Field keys are namespaced "<source>.<field>"; a nil value means the source
// declared the field but found nothing.
type RawCollectedData struct {
	Fields   map[string]*string `json:"fields"`
	Statuses []SourceStatus     `json:"statuses"`
}

// NewRawCollectedData returns an empty collection ready for merging.
func NewRawCollectedData() *RawCollectedData {
	return &RawCollectedData{Fields: make(map[string]*string)}
}

// Merge namespaces fields under source and appends its status.
func (r *RawCollectedData) Merge(source string, fields map[string]*string, status SourceStatus) {
	for k, v := range fields {
		r.Fields[source+"."+k] = v
	}
	r.Statuses = append(r.Statuses, status)
}

// Status returns the status recorded for source, if any.
func (r *RawCollectedData) Status(source string) (SourceStatus, bool) {
	for _, s := range r.Statuses {
		if s.Source == source {
			return s, true
		}
	}
	return SourceStatus{}, false
}

// Keys returns the present (non-nil) field keys in sorted order.
func (r *RawCollectedData) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k, v := range r.Fields {
		if v != nil && strings.TrimSpace(*v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Values returns every present value whose key maps to kind, grouped by
// source name.
func (r *RawCollectedData) Values(kind Field) map[string][]string {
	out := make(map[string][]string)
	for _, k := range r.Keys() {
		source, name, ok := strings.Cut(k, ".")
		if !ok || FieldKindOf(name) != kind {
			continue
		}
		out[source] = append(out[source], *r.Fields[k])
	}
	return out
}

// FieldKindOf maps a source field name such as "email_2", "phones" or
// "whatsapp" to its contact field. Unknown names return "".
func FieldKindOf(name string) Field {
	base := strings.ToLower(strings.TrimRight(name, "0123456789_"))
	base = strings.TrimSuffix(base, "s")
	switch base {
	case "email", "mail":
		return FieldEmail
	case "phone", "telephone", "tel":
		return FieldPhone
	case "whatsapp", "wa":
		return FieldWhatsApp
	case "website", "site", "url":
		return FieldWebsite
	default:
		return ""
	}
}
