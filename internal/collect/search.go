package collect

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/pkg/jina"
)

// SearchSource runs a web search for the lead and extracts contacts from
// the result titles, snippets and content.
type SearchSource struct {
	client     jina.Client
	maxResults int
	opts       []jina.SearchOption
}

// NewSearchSource creates a search source. maxResults bounds how many
// results are requested and scanned (default 5). opts are applied to every
// query, typically a country and language bias.
func NewSearchSource(client jina.Client, maxResults int, opts ...jina.SearchOption) *SearchSource {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchSource{client: client, maxResults: maxResults, opts: opts}
}

// Name implements Source.
func (*SearchSource) Name() string { return "search" }

// Supports implements Source.
func (*SearchSource) Supports(model.Lead) bool { return true }

// Collect implements Source.
func (s *SearchSource) Collect(ctx context.Context, lead model.Lead) (*Result, error) {
	query := searchQuery(lead)
	opts := append([]jina.SearchOption{jina.WithNum(s.maxResults)}, s.opts...)
	resp, err := s.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", query)
	}

	var found Contacts
	for i, r := range resp.Data {
		if i >= s.maxResults {
			break
		}
		found.Add(ExtractContacts(strings.Join([]string{r.Title, r.Description, r.Content}, "\n")))
	}
	return &Result{Fields: found.Fields(2)}, nil
}

func searchQuery(lead model.Lead) string {
	parts := []string{`"` + strings.TrimSpace(lead.Name) + `"`}
	if lead.City != "" {
		parts = append(parts, strings.TrimSpace(lead.City))
	}
	if lead.State != "" {
		parts = append(parts, strings.TrimSpace(lead.State))
	}
	parts = append(parts, "contato telefone email")
	return strings.Join(parts, " ")
}
