package collect

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/internal/resilience"
	"github.com/sells-group/lead-consensus/pkg/jina"
)

const defaultUserAgent = "lead-consensus/1.0"

// Link text and paths that usually lead to a contact page.
var contactHints = []string{"contato", "contact", "fale-conosco", "fale conosco"}

// WebsiteSource fetches the lead's website and its contact page and
// extracts mailto, tel and WhatsApp links plus contacts in the page text.
// When the site blocks direct fetches and a reader is configured, the
// homepage is read through it instead.
type WebsiteSource struct {
	client    *http.Client
	reader    jina.Client
	userAgent string
}

// WebsiteOption configures a WebsiteSource.
type WebsiteOption func(*WebsiteSource)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) WebsiteOption {
	return func(s *WebsiteSource) { s.client = hc }
}

// WithReader sets a reader used when the site refuses direct fetches.
func WithReader(r jina.Client) WebsiteOption {
	return func(s *WebsiteSource) { s.reader = r }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) WebsiteOption {
	return func(s *WebsiteSource) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// NewWebsiteSource creates a website source.
func NewWebsiteSource(opts ...WebsiteOption) *WebsiteSource {
	s := &WebsiteSource{
		client:    &http.Client{Timeout: 20 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements Source.
func (*WebsiteSource) Name() string { return "website" }

// Supports implements Source.
func (*WebsiteSource) Supports(lead model.Lead) bool {
	return strings.TrimSpace(lead.Website) != ""
}

// Collect implements Source.
func (s *WebsiteSource) Collect(ctx context.Context, lead model.Lead) (*Result, error) {
	home, err := siteURL(lead.Website)
	if err != nil {
		return nil, err
	}

	doc, finalURL, err := s.fetch(ctx, home.String())
	if err != nil {
		if s.reader != nil && isBlocked(err) {
			return s.readThrough(ctx, home.String())
		}
		return nil, err
	}

	found := contactsFromDocument(doc)
	res := &Result{}

	if contact := contactPageURL(doc, finalURL); contact != "" {
		cdoc, _, cerr := s.fetch(ctx, contact)
		if cerr != nil {
			zap.L().Debug("website: contact page fetch failed",
				zap.String("url", contact),
				zap.Error(cerr),
			)
			res.Partial = true
		} else {
			found.Add(contactsFromDocument(cdoc))
		}
	}

	res.Fields = found.Fields(3)
	res.Fields["website"] = strPtr(finalURL.String())
	return res, nil
}

func (s *WebsiteSource) fetch(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "website: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "website: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &resilience.StatusError{Service: "website", StatusCode: resp.StatusCode, Body: rawURL}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "website: parse document")
	}
	return doc, resp.Request.URL, nil
}

func (s *WebsiteSource) readThrough(ctx context.Context, rawURL string) (*Result, error) {
	resp, err := s.reader.Read(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "website: read through")
	}
	found := ExtractContacts(resp.Data.Content)
	fields := found.Fields(3)
	fields["website"] = strPtr(rawURL)
	return &Result{Fields: fields, Partial: true}, nil
}

func isBlocked(err error) bool {
	var se *resilience.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusUnauthorized
}

// siteURL parses a website as typed on a lead ("padaria.com.br",
// "http://www.padaria.com.br/").
func siteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("website: invalid url %q", raw)
	}
	return u, nil
}

// contactsFromDocument collects explicit mailto/tel/WhatsApp links first,
// then anything that looks like a contact in the visible text.
func contactsFromDocument(doc *goquery.Document) Contacts {
	var c Contacts
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
			if email := cleanEmail(addr); email != "" {
				c.Emails = appendUnique(c.Emails, email)
			}
		case strings.HasPrefix(lower, "tel:"):
			if tel := strings.TrimSpace(href[len("tel:"):]); len(onlyDigits(tel)) >= 8 {
				c.Phones = appendUnique(c.Phones, tel)
			}
		case strings.Contains(lower, "wa.me/") || strings.Contains(lower, "whatsapp.com/send"):
			c.Add(ExtractContacts(href))
		}
	})

	doc.Find("script, style, noscript").Remove()
	c.Add(ExtractContacts(doc.Find("body").Text()))
	return c
}

// contactPageURL returns the absolute URL of the first same-host link
// that looks like a contact page, or "".
func contactPageURL(doc *goquery.Document, base *url.URL) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.ToLower(a.Text() + " " + href)
		hinted := false
		for _, h := range contactHints {
			if strings.Contains(text, h) {
				hinted = true
				break
			}
		}
		if !hinted {
			return true
		}
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host != base.Host {
			return true
		}
		u.Fragment = ""
		if u.String() == base.String() {
			return true
		}
		found = u.String()
		return false
	})
	return found
}
