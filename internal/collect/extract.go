package collect

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	whatsappRe = regexp.MustCompile(`(?i)(?:wa\.me/|whatsapp\.com/send/?\?phone=)\+?(\d{8,15})`)
	phoneRe    = regexp.MustCompile(`(?:\+\s?\d{1,3}[\s.-]?)?\(?\d{2}\)?[\s.-]?9?\s?\d{4}[\s.-]?\d{4}`)
)

// Non-contact addresses that show up in page markup.
var ignoredEmailSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
	"@example.com", "@sentry.io", "@wixpress.com", "@sentry.wixpress.com",
}

// Contacts are the raw contact candidates found in a piece of text, in
// order of first appearance and without duplicates.
type Contacts struct {
	Emails    []string
	Phones    []string
	WhatsApps []string
}

// Empty reports whether nothing was found.
func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.WhatsApps) == 0
}

// Add merges other into c, keeping first-seen order.
func (c *Contacts) Add(other Contacts) {
	c.Emails = appendUnique(c.Emails, other.Emails...)
	c.Phones = appendUnique(c.Phones, other.Phones...)
	c.WhatsApps = appendUnique(c.WhatsApps, other.WhatsApps...)
}

// ExtractContacts scans free text (HTML, markdown or plain) for emails,
// phone numbers and WhatsApp links.
func ExtractContacts(text string) Contacts {
	var c Contacts

	for _, m := range emailRe.FindAllString(text, -1) {
		if email := cleanEmail(m); email != "" {
			c.Emails = appendUnique(c.Emails, email)
		}
	}

	for _, m := range whatsappRe.FindAllStringSubmatch(text, -1) {
		c.WhatsApps = appendUnique(c.WhatsApps, m[1])
	}

	// Drop WhatsApp links before looking for phones so the same digits
	// are not reported twice.
	stripped := whatsappRe.ReplaceAllString(text, " ")
	for _, m := range phoneRe.FindAllString(stripped, -1) {
		if digits := onlyDigits(m); len(digits) >= 10 && len(digits) <= 13 {
			c.Phones = appendUnique(c.Phones, strings.TrimSpace(m))
		}
	}
	return c
}

// Fields turns contacts into source fields: "email", "email_2", ...,
// keeping at most max values per kind. Kinds with no value are reported as
// nil so the field is recorded as searched but absent.
func (c Contacts) Fields(max int) map[string]*string {
	out := make(map[string]*string)
	put := func(kind string, values []string) {
		if len(values) == 0 {
			out[kind] = nil
			return
		}
		for i, v := range values {
			if i >= max {
				break
			}
			key := kind
			if i > 0 {
				key = kind + "_" + strconv.Itoa(i+1)
			}
			out[key] = &v
		}
	}
	put("email", c.Emails)
	put("phone", c.Phones)
	put("whatsapp", c.WhatsApps)
	return out
}

func cleanEmail(s string) string {
	s = strings.ToLower(strings.Trim(s, ".-_"))
	for _, suffix := range ignoredEmailSuffixes {
		if strings.HasSuffix(s, suffix) {
			return ""
		}
	}
	return s
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
