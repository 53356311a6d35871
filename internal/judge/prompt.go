package judge

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-consensus/internal/model"
)

// SystemPrompt is the shared system instruction for every provider.
const SystemPrompt = `You are a business analyst specializing in Brazilian company data. You are reviewing contact information collected from several independent sources for a single business lead.

Your role is to decide which email, phone, WhatsApp number and website most likely belong to the business.

Rules:
- Answer ONLY based on the collected data and the lead record
- Return a single valid JSON object and nothing else
- Use null for any field you cannot support with the collected data
- Prefer values that several sources agree on
- Phones and WhatsApp numbers as digits only, including country and area code
- Confidence should be 0.0-1.0 based on how well the sources agree`

// BuildPrompt renders the user message for lead and its collected data.
// Keys are listed in sorted order so identical inputs produce identical
// prompts.
func BuildPrompt(lead model.Lead, data *model.RawCollectedData) string {
	var sb strings.Builder

	sb.WriteString("Lead:\n")
	sb.WriteString(fmt.Sprintf("- id: %s\n", lead.ID))
	sb.WriteString(fmt.Sprintf("- name: %s\n", lead.Name))
	sb.WriteString(fmt.Sprintf("- address: %s\n", lead.FullAddress()))

	sb.WriteString("\n--- Collected Data ---\n")
	if data == nil || len(data.Keys()) == 0 {
		sb.WriteString("(no source returned data)\n")
	} else {
		for _, k := range data.Keys() {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, strings.TrimSpace(*data.Fields[k])))
		}
	}

	if data != nil && len(data.Statuses) > 0 {
		sb.WriteString("\n--- Source Status ---\n")
		for _, s := range data.Statuses {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Source, s.State))
		}
	}

	sb.WriteString(`
Respond with ONLY valid JSON in this format:
{
  "email": <string or null>,
  "phone": <string or null>,
  "whatsapp": <string or null>,
  "website": <string or null>,
  "insight": "<one or two sentences about the business and its contact channels>",
  "confidence": <0.0 to 1.0>
}`)

	return sb.String()
}
