package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContacts(t *testing.T) {
	text := `Fale conosco: Contato@PadariaCentral.com.br ou vendas@padariacentral.com.br.
Telefone: (11) 3255-0000 | Celular +55 11 98765-4321
WhatsApp: https://wa.me/5511987654321
<img src="logo@2x.png"> contato@padariacentral.com.br`

	c := ExtractContacts(text)

	assert.Equal(t, []string{"contato@padariacentral.com.br", "vendas@padariacentral.com.br"}, c.Emails)
	assert.Equal(t, []string{"(11) 3255-0000", "+55 11 98765-4321"}, c.Phones)
	assert.Equal(t, []string{"5511987654321"}, c.WhatsApps)
	assert.False(t, c.Empty())
}

func TestExtractContacts_IgnoresAssetsAndShortNumbers(t *testing.T) {
	c := ExtractContacts(`icon@2x.webp noreply@example.com ramal 1234 CEP 01310-100`)
	assert.True(t, c.Empty())
}

func TestExtractContacts_WhatsAppAPILink(t *testing.T) {
	c := ExtractContacts(`<a href="https://api.whatsapp.com/send?phone=5511912345678&text=oi">`)
	assert.Equal(t, []string{"5511912345678"}, c.WhatsApps)
	assert.Empty(t, c.Phones)
}

func TestContacts_Fields(t *testing.T) {
	c := Contacts{
		Emails: []string{"a@x.com", "b@x.com", "c@x.com"},
		Phones: []string{"11 3255-0000"},
	}
	f := c.Fields(2)

	require.NotNil(t, f["email"])
	assert.Equal(t, "a@x.com", *f["email"])
	require.NotNil(t, f["email_2"])
	assert.Equal(t, "b@x.com", *f["email_2"])
	assert.NotContains(t, f, "email_3")
	assert.Equal(t, "11 3255-0000", *f["phone"])
	assert.Contains(t, f, "whatsapp")
	assert.Nil(t, f["whatsapp"])
}

func TestContacts_AddKeepsFirstSeenOrder(t *testing.T) {
	c := Contacts{Emails: []string{"b@x.com"}}
	c.Add(Contacts{Emails: []string{"a@x.com", "b@x.com"}})
	assert.Equal(t, []string{"b@x.com", "a@x.com"}, c.Emails)
}
