package page

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefine(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(DefaultElementName, Definition{}))

	// loading the definitions a second time is tolerated by callers
	err := reg.Define(DefaultElementName, Definition{})
	assert.ErrorIs(t, err, ErrAlreadyDefined)
	assert.Equal(t, []string{DefaultElementName}, reg.Names())

	def, ok := reg.Lookup(DefaultElementName)
	require.True(t, ok)
	assert.NotNil(t, def.Gate)

	_, ok = reg.Lookup("other-slot")
	assert.False(t, ok)
}

func TestRegistryInvalidNames(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"", "adslot", "Ad-Slot", "1-slot", "ad slot-x", "-slot"} {
		assert.ErrorIs(t, reg.Define(name, Definition{}), ErrInvalidElementName, name)
	}
	assert.Empty(t, reg.Names())
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(DefaultElementName, Definition{}))
	reg.Reset()
	assert.Empty(t, reg.Names())
	assert.NoError(t, reg.Define(DefaultElementName, Definition{}))
}

func TestScriptLoaderEnsure(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		insert bool
		before string
	}{
		{name: "empty head", page: `<html><head></head><body></body></html>`, insert: true},
		{name: "before first script", page: `<html><head><title>x</title></head><body><script>var a;</script></body></html>`, insert: true, before: "var a;"},
		{name: "already loaded", page: `<html><head><script async src="https://www.googletagservices.com/tag/js/gpt.js"></script></head><body></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.page))
			require.NoError(t, err)

			l := ScriptLoader{}
			assert.Equal(t, tt.insert, l.Ensure(doc))
			assert.False(t, l.Ensure(doc), "second call must be a no-op")
			assert.True(t, l.Loaded(doc))
			assert.Equal(t, 1, doc.Find(`script[src="`+DefaultScriptURL+`"]`).Length())

			if tt.before != "" {
				out, err := doc.Html()
				require.NoError(t, err)
				assert.Less(t, strings.Index(out, "gpt.js"), strings.Index(out, tt.before))
			}
		})
	}
}

func TestScriptLoaderCustomURL(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<p>x</p>`))
	require.NoError(t, err)

	l := ScriptLoader{URL: "https://securepubads.g.doubleclick.net/tag/js/gpt.js"}
	assert.True(t, l.Ensure(doc))
	assert.Equal(t, 1, doc.Find(`script[src="https://securepubads.g.doubleclick.net/tag/js/gpt.js"]`).Length())
	assert.False(t, ScriptLoader{}.Loaded(doc))
}
