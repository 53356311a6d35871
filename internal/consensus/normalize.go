// Package consensus reconciles provider judgments into one record and
// measures how much the providers agree.
package consensus

import (
	"regexp"
	"strings"

	"github.com/sells-group/lead-consensus/internal/model"
)

// DefaultCountryCode is prepended to national phone numbers.
const DefaultCountryCode = "55"

var emailRe = regexp.MustCompile(`^[\p{L}\p{N}._%+\-]+@[\p{L}\p{N}.\-]+\.\p{L}{2,}$`)

// NormalizeEmail strips a mailto: prefix and any query, lower-cases and
// validates the address.
func NormalizeEmail(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		s = s[7:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Count(s, "@") != 1 || !emailRe.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizePhone keeps digits only and strips leading zeros. Numbers shorter
// than 8 digits are rejected; 10 and 11 digit national numbers get
// countryCode prepended.
func NormalizePhone(s, countryCode string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if len(digits) < 8 {
		return "", false
	}
	if (len(digits) == 10 || len(digits) == 11) && countryCode != "" {
		digits = countryCode + digits
	}
	return digits, true
}

// NormalizeURL strips the scheme, a leading "www." and a trailing slash and
// lower-cases the host. The path keeps its case.
func NormalizeURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			s = s[len(scheme):]
			break
		}
	}

	host, path, _ := strings.Cut(s, "/")
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.ContainsAny(host, " \t") || !strings.Contains(host, ".") {
		return "", false
	}

	out := host
	if path != "" {
		out += "/" + path
	}
	return strings.TrimRight(out, "/"), true
}

// Normalizer maps raw judgment values to comparable categories.
type Normalizer struct {
	CountryCode string
}

// Field normalizes raw for field f. It returns nil when raw is absent or not
// a valid value for the field.
func (n Normalizer) Field(f model.Field, raw *string) *string {
	if raw == nil {
		return nil
	}

	var (
		v  string
		ok bool
	)
	switch f {
	case model.FieldEmail:
		v, ok = NormalizeEmail(*raw)
	case model.FieldPhone, model.FieldWhatsApp:
		v, ok = NormalizePhone(*raw, n.CountryCode)
	case model.FieldWebsite:
		v, ok = NormalizeURL(*raw)
	}
	if !ok {
		return nil
	}
	return &v
}
