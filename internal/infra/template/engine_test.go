package template

import (
	"testing"

	"medinotify/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRendersEveryRegisteredKind(t *testing.T) {
	engine, err := NewEngine("templates")
	require.NoError(t, err)

	data := map[string]any{
		"Name":    "Pat",
		"Title":   "Checkup Season",
		"Content": "Book your visit",
	}

	for kind := range registry {
		subject, html, text, err := engine.Render(kind, data)
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, subject)
		assert.NotEmpty(t, html)
		assert.NotEmpty(t, text)
	}
}

func TestEngineSubjectOverride(t *testing.T) {
	engine, err := NewEngine("templates")
	require.NoError(t, err)

	subject, _, _, err := engine.Render(notification.KindCampaign, map[string]any{
		"Subject": "Flash Announcement",
		"Title":   "T",
		"Content": "c",
	})
	require.NoError(t, err)
	assert.Equal(t, "Flash Announcement", subject)

	// Empty override falls back to the registered subject
	subject, _, _, err = engine.Render(notification.KindWelcome, map[string]any{"Subject": ""})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Aboard", subject)
}

func TestEngineRejectsUnknownKind(t *testing.T) {
	engine, err := NewEngine("templates")
	require.NoError(t, err)

	_, _, _, err = engine.Render(notification.Kind("pager"), nil)
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	text := stripHTML("<p>Hello &amp; welcome</p>\n<ul><li>one</li><li>two</li></ul>")
	assert.Equal(t, "Hello & welcome one two", text)
}
