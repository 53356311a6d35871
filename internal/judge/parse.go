package judge

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// ParseJudgment decodes a provider answer into a judgment. Markdown fences
// and text around the JSON object are ignored. Empty strings become nil.
func ParseJudgment(text string) (*model.ProviderJudgment, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Wrap(model.ErrMalformedResponse, "empty response")
	}

	var j model.ProviderJudgment
	if err := json.Unmarshal([]byte(cleaned), &j); err != nil {
		return nil, eris.Wrapf(model.ErrMalformedResponse, "decode: %v", err)
	}

	j.Email = blankToNil(j.Email)
	j.Phone = blankToNil(j.Phone)
	j.WhatsApp = blankToNil(j.WhatsApp)
	j.Website = blankToNil(j.Website)
	j.Insight = blankToNil(j.Insight)

	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a":
		return nil
	}
	return &v
}
