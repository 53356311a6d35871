package judge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-consensus/internal/model"
)

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantEmail string
		wantPhone string
		wantNil   []string
	}{
		{
			name:      "plain object",
			input:     `{"email":"contato@padaria.com.br","phone":"5511987654321","whatsapp":null,"website":"padariacentral.com.br","insight":"Bakery.","confidence":0.8}`,
			wantEmail: "contato@padaria.com.br",
			wantPhone: "5511987654321",
			wantNil:   []string{"whatsapp"},
		},
		{
			name:      "json fence",
			input:     "```json\n{\"email\":\"a@x.com\",\"phone\":\"11 98765-4321\"}\n```",
			wantEmail: "a@x.com",
			wantPhone: "11 98765-4321",
		},
		{
			name:      "bare fence with chatter",
			input:     "Here you go:\n```\n{\"email\":\"a@x.com\",\"phone\":null}\n```\nHope it helps.",
			wantEmail: "a@x.com",
			wantNil:   []string{"phone"},
		},
		{
			name:      "surrounding text",
			input:     `Result: {"email":" a@x.com ","phone":"N/A","website":""} end`,
			wantEmail: "a@x.com",
			wantNil:   []string{"phone", "website"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := ParseJudgment(tt.input)
			require.NoError(t, err)
			require.NotNil(t, j)
			if tt.wantEmail != "" {
				require.NotNil(t, j.Email)
				assert.Equal(t, tt.wantEmail, *j.Email)
			}
			if tt.wantPhone != "" {
				require.NotNil(t, j.Phone)
				assert.Equal(t, tt.wantPhone, *j.Phone)
			}
			for _, f := range tt.wantNil {
				assert.Nil(t, j.Value(model.Field(f)), f)
			}
		})
	}
}

func TestParseJudgment_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no object", "I could not find any contact data."},
		{"broken json", `{"email": "a@x.com",`},
		{"wrong type", `{"email": 42}`},
		{"confidence out of range", `{"email":"a@x.com","confidence":1.7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := ParseJudgment(tt.input)
			assert.Nil(t, j)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrMalformedResponse))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, cleanJSON(`x {"a":{"b":2}} y`))
	assert.Equal(t, "", cleanJSON("no braces"))
}
