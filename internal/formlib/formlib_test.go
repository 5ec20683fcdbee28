package formlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/formfill-cli/internal/form"
)

func TestGet(t *testing.T) {
	for _, name := range Names() {
		d, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
		assert.NotEmpty(t, d.Fields())
	}

	_, err := Get("nope")
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{CRMContact, Contacts, FoodLog, Task}, Names())
}

func TestContacts_Defaults(t *testing.T) {
	d, err := Get(Contacts)
	require.NoError(t, err)

	data := form.NewData(d)
	data.Populate(map[string]any{"role": "CTO"})
	got := data.ToDict()
	assert.Equal(t, "P2", got["suggested_revisit"])
	assert.Equal(t, "sms", got["response_message_type"])
	assert.Equal(t, false, got["is_done"])
}

func TestContacts_PromptFields(t *testing.T) {
	d, err := Get(Contacts)
	require.NoError(t, err)

	var prompted []string
	for _, f := range d.Fields() {
		if !f.IgnoreInPrompt() {
			prompted = append(prompted, f.Name())
		}
	}
	assert.NotContains(t, prompted, "name")
	assert.NotContains(t, prompted, "summarized_note")
	assert.Contains(t, prompted, "suggested_revisit")
}
