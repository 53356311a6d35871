package collect

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/pkg/google"
)

// PlacesSource looks the lead up with Google Places text search and reports
// the best match's phone, website and formatted address.
type PlacesSource struct {
	client google.Client
}

// NewPlacesSource creates a places source backed by client.
func NewPlacesSource(client google.Client) *PlacesSource {
	return &PlacesSource{client: client}
}

// Name implements Source.
func (*PlacesSource) Name() string { return "places" }

// Supports implements Source.
func (*PlacesSource) Supports(model.Lead) bool { return true }

// Collect implements Source.
func (s *PlacesSource) Collect(ctx context.Context, lead model.Lead) (*Result, error) {
	query := strings.TrimSpace(lead.Name + " " + lead.FullAddress())
	resp, err := s.client.TextSearch(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "places: text search %q", query)
	}

	fields := map[string]*string{"phone": nil, "website": nil}
	if len(resp.Places) == 0 {
		return &Result{Fields: fields}, nil
	}

	p := bestPlace(resp.Places, lead)
	phone := p.InternationalPhoneNumber
	if phone == "" {
		phone = p.NationalPhoneNumber
	}
	fields["phone"] = strPtr(phone)
	fields["website"] = strPtr(p.WebsiteURI)
	fields["formatted_address"] = strPtr(p.FormattedAddress)
	fields["display_name"] = strPtr(p.DisplayName.Text)
	return &Result{Fields: fields}, nil
}

// bestPlace prefers the first result whose name matches the lead's, falling
// back to the top-ranked result.
func bestPlace(places []google.Place, lead model.Lead) google.Place {
	want := model.NormalizeKeyPart(lead.Name)
	for _, p := range places {
		got := model.NormalizeKeyPart(p.DisplayName.Text)
		if got != "" && (strings.Contains(got, want) || strings.Contains(want, got)) {
			return p
		}
	}
	return places[0]
}
