package extractor_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webxcore/webx/internal/extractor"
)

const actionsFixture = `<html><body><main>
	<h1>Account</h1>
	<p>Manage your account settings below, including signing in with your existing credentials.</p>
	<a id="home-link" href="/home">Home</a>
	<form name="login-form" action="/login" method="POST">
		<input type="text" name="username" required>
		<input type="password" name="password">
		<select name="remember"><option>yes</option></select>
		<button type="submit">Log in</button>
	</form>
</main></body></html>`

func TestExtractor_Extract_ActionsIncludeAllKinds(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	ext := newTestExtractor()

	page, err := ext.Extract(buildInput(u, actionsFixture))
	require.Nil(t, err)
	require.NotEmpty(t, page.Actions)

	kinds := map[string]bool{}
	for _, a := range page.Actions {
		kinds[string(a.Type)] = true
	}
	assert.True(t, kinds["navigate"])
	assert.True(t, kinds["submit"])
	assert.True(t, kinds["fill"])
	assert.True(t, kinds["select"])
}

func TestExtractor_Extract_ActionIdsStableAcrossExtractions(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	ext := newTestExtractor()

	page1, err1 := ext.Extract(buildInput(u, actionsFixture))
	page2, err2 := ext.Extract(buildInput(u, actionsFixture))
	require.Nil(t, err1)
	require.Nil(t, err2)
	require.Equal(t, len(page1.Actions), len(page2.Actions))

	for i := range page1.Actions {
		assert.Equal(t, page1.Actions[i].ID, page2.Actions[i].ID)
		assert.Equal(t, page1.Actions[i].Selector, page2.Actions[i].Selector)
	}
}

func TestExtractor_Extract_ActionsDeduplicatedById(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	ext := newTestExtractor()

	page, err := ext.Extract(buildInput(u, actionsFixture))
	require.Nil(t, err)

	seen := map[string]bool{}
	for _, a := range page.Actions {
		require.False(t, seen[a.ID], "duplicate action id %s", a.ID)
		seen[a.ID] = true
	}
}

func buildInput(u *url.URL, htmlBody string) extractor.ExtractInput {
	return extractor.ExtractInput{
		URL:       *u,
		HTML:      []byte(htmlBody),
		Mode:      extractor.ModeCompact,
		Source:    extractor.SourceStatic,
		FetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
