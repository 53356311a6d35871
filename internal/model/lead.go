package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxIdentifierLen = 128

// Lead is an immutable business lead as produced by the input loader.
type Lead struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Validate checks that the lead carries a usable identifier, name and
// address. It runs before any network work is scheduled for the lead.
func (l Lead) Validate() error {
	id := strings.TrimSpace(l.ID)
	switch {
	case id == "":
		return NewValidationError("id", "identifier is empty")
	case utf8.RuneCountInString(id) > maxIdentifierLen:
		return NewValidationError("id", "identifier is longer than 128 characters")
	}
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".-_/", r) {
			continue
		}
		return NewValidationError("id", "identifier contains invalid character "+strconv.QuoteRune(r))
	}
	if NormalizeKeyPart(l.Name) == "" {
		return NewValidationError("name", "name is empty")
	}
	if NormalizeKeyPart(l.Address) == "" {
		return NewValidationError("address", "address is empty")
	}
	return nil
}

// FullAddress joins address, city and state for prompts and search queries.
func (l Lead) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Address, l.City, l.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Fingerprint returns the deterministic cache key for the lead: the hex
// sha256 of the normalized identifier, name and address.
func (l Lead) Fingerprint() string {
	key := NormalizeKeyPart(l.ID) + "|" + NormalizeKeyPart(l.Name) + "|" + NormalizeKeyPart(l.Address)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var foldMarks = runes.Remove(runes.In(unicode.Mn))

// NormalizeKeyPart folds accents, lower-cases, drops punctuation and
// collapses whitespace. "São Paulo, SP." and "sao  paulo sp" normalize to
// the same value, as do "12.345.678/0001-90" and "12345678000190".
func NormalizeKeyPart(s string) string {
	t := transform.Chain(norm.NFD, foldMarks, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
