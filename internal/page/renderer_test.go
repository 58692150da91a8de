package page

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
	"github.com/patrickwarner/adslotgate/internal/slot"
	"github.com/patrickwarner/adslotgate/internal/targeting"
)

const (
	gptSelector = `script[src="https://www.googletagservices.com/tag/js/gpt.js"]`
	contentSlot = `<as24-ad-slot type="doubleclick" slot-id="/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2" sizes="[[300,100],[728,90]]"></as24-ad-slot>`
)

var desktop = slot.Environment{ViewportWidth: 1280, ViewportHeight: 800}

func newTestRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Define(DefaultElementName, Definition{Gate: slot.NewGate(slot.DefaultConfig())}))
	return NewRenderer(reg, opts)
}

func render(t *testing.T, r *Renderer, body string, env slot.Environment) (*Result, *goquery.Document) {
	t.Helper()
	res, err := r.Render(context.Background(), strings.NewReader("<html><head></head><body>"+body+"</body></html>"), env, nil)
	require.NoError(t, err)
	out, err := res.HTML()
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return res, doc
}

func TestRender_NoSlotNoScript(t *testing.T) {
	r := newTestRenderer(t, Options{})
	res, doc := render(t, r, "<p>article</p>", desktop)

	assert.Empty(t, res.Decisions)
	assert.False(t, res.ScriptInserted)
	assert.Equal(t, 0, doc.Find(gptSelector).Length())
	assert.Equal(t, 0, doc.Find("script").Length())
}

func TestRender_EligibleSlotLoadsGPT(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	r := newTestRenderer(t, Options{Metrics: metrics})
	res, doc := render(t, r, contentSlot, desktop)

	require.Len(t, res.Decisions, 1)
	assert.True(t, res.Decisions[0].Eligible)
	assert.Equal(t, "adslot-1", res.Decisions[0].ElementID)
	assert.True(t, res.ScriptInserted)

	assert.Equal(t, 1, doc.Find(gptSelector).Length())
	assert.Equal(t, 1, doc.Find("as24-ad-slot *").Length())
	assert.Equal(t, 1, doc.Find("as24-ad-slot > div#adslot-1-container").Length())

	bootstrap := doc.Find("body > script").Last().Text()
	assert.Contains(t, bootstrap, `googletag.defineSlot("/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2",[[300,100],[728,90]],"adslot-1-container")`)
	assert.Contains(t, bootstrap, `googletag.display("adslot-1-container");`)
	assert.Contains(t, bootstrap, "googletag.enableServices();")

	assert.Equal(t, 1, metrics.DecisionCount("eligible"))
	assert.Equal(t, 1, metrics.ScriptInserts)
}

func TestRender_ResolutionGates(t *testing.T) {
	r := newTestRenderer(t, Options{})
	w, h := desktop.ViewportWidth, desktop.ViewportHeight

	tests := []struct {
		name  string
		attr  string
		value int
		fill  int
	}{
		{"x above min", "min-x-resolution", w - 1, 1},
		{"x below min", "min-x-resolution", w + 1, 0},
		{"x above max", "max-x-resolution", w - 1, 0},
		{"x below max", "max-x-resolution", w + 1, 1},
		{"y above min", "min-y-resolution", h - 1, 1},
		{"y below min", "min-y-resolution", h + 1, 0},
		{"y above max", "max-y-resolution", h - 1, 0},
		{"y below max", "max-y-resolution", h + 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := strings.Replace(contentSlot, "<as24-ad-slot ", `<as24-ad-slot `+tt.attr+`="`+strconv.Itoa(tt.value)+`" `, 1)
			_, doc := render(t, r, el, desktop)
			assert.Equal(t, tt.fill, doc.Find("as24-ad-slot *").Length())
		})
	}
}

func TestRender_AdsOff(t *testing.T) {
	r := newTestRenderer(t, Options{})
	res, doc := render(t, r, contentSlot, slot.Environment{ViewportWidth: 1280, URLFragment: "ads-off"})

	assert.Equal(t, slot.ReasonAdsOff, res.Decisions[0].Reason)
	assert.Equal(t, 0, doc.Find(gptSelector).Length())
	assert.Equal(t, 0, doc.Find("as24-ad-slot *").Length())
}

func TestRender_UnsupportedType(t *testing.T) {
	r := newTestRenderer(t, Options{})
	_, doc := render(t, r, `<as24-ad-slot type="super-ads"></as24-ad-slot>`, desktop)

	assert.Equal(t, 0, doc.Find(gptSelector).Length())
	assert.Equal(t, 0, doc.Find("as24-ad-slot *").Length())
}

func TestRender_Dealer(t *testing.T) {
	r := newTestRenderer(t, Options{})
	_, doc := render(t, r, `<as24-ad-slot type="doubleclick" slot-id="/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2"></as24-ad-slot>`, slot.Environment{UserType: "D"})

	assert.Equal(t, 0, doc.Find(gptSelector).Length())
	assert.Equal(t, 0, doc.Find("as24-ad-slot *").Length())
}

func TestRender_ParameterValidation(t *testing.T) {
	r := newTestRenderer(t, Options{})

	_, doc := render(t, r, `<as24-ad-slot type="doubleclick" NO_SLOT_ID_HERE></as24-ad-slot>`, desktop)
	assert.Equal(t, 0, doc.Find("as24-ad-slot *").Length())

	_, doc = render(t, r,
		`<as24-ad-slot type="doubleclick" slot-id="1" sizes="a"></as24-ad-slot>`+
			`<as24-ad-slot type="doubleclick" slot-id="1" size-mapping="a"></as24-ad-slot>`+
			`<as24-ad-slot type="doubleclick" slot-id="1" sizes="a" size-mapping="a"></as24-ad-slot>`, desktop)
	assert.Equal(t, 0, doc.Find("as24-ad-slot *").Length())
	assert.Equal(t, 0, doc.Find(gptSelector).Length())

	_, doc = render(t, r, `<as24-ad-slot type="doubleclick" slot-id="1" sizes="[]"></as24-ad-slot>`, desktop)
	assert.Equal(t, 1, doc.Find("as24-ad-slot *").Length())

	_, doc = render(t, r, `<as24-ad-slot type="doubleclick" slot-id="1" size-mapping="[]"></as24-ad-slot>`, desktop)
	assert.Equal(t, 1, doc.Find("as24-ad-slot *").Length())
}

func TestRender_SizeMappingWritesSizes(t *testing.T) {
	r := newTestRenderer(t, Options{})
	_, doc := render(t, r, `<as24-ad-slot type="doubleclick" slot-id="1" size-mapping="[[[728,300],[[728,90],[728,300]]],[[0,0],[[300,100],[300,50],[320,50],[320,100]]]]"></as24-ad-slot>`, desktop)

	assert.Equal(t, 1, doc.Find("as24-ad-slot *").Length())
	assert.Equal(t, 1, doc.Find(`as24-ad-slot[sizes="[[728,90],[728,300],[300,100],[300,50],[320,50],[320,100]]"]`).Length())
}

func TestRender_ScriptInsertedOnce(t *testing.T) {
	r := newTestRenderer(t, Options{})
	res, doc := render(t, r, contentSlot+`<as24-ad-slot type="doubleclick" slot-id="2" sizes="[[300,250]]"></as24-ad-slot>`, desktop)

	assert.Equal(t, 2, res.Eligible())
	assert.Equal(t, 1, doc.Find(gptSelector).Length())
	assert.Equal(t, 2, doc.Find("as24-ad-slot *").Length())

	bootstrap := doc.Find("body > script").Last().Text()
	assert.Equal(t, 2, strings.Count(bootstrap, "googletag.defineSlot("))
	assert.Equal(t, 1, strings.Count(bootstrap, "googletag.enableServices()"))
}

func TestRender_ExistingScriptNotDuplicated(t *testing.T) {
	r := newTestRenderer(t, Options{})
	page := `<html><head><script src="https://www.googletagservices.com/tag/js/gpt.js"></script></head><body>` + contentSlot + `</body></html>`
	res, err := r.Render(context.Background(), strings.NewReader(page), desktop, nil)
	require.NoError(t, err)
	out, err := res.HTML()
	require.NoError(t, err)

	assert.False(t, res.ScriptInserted)
	assert.Equal(t, 1, strings.Count(out, "gpt.js"))
}

func TestRender_ScriptBeforeFirstScript(t *testing.T) {
	r := newTestRenderer(t, Options{})
	page := `<html><head><script src="/app.js"></script></head><body>` + contentSlot + `</body></html>`
	res, err := r.Render(context.Background(), strings.NewReader(page), desktop, nil)
	require.NoError(t, err)
	out, err := res.HTML()
	require.NoError(t, err)

	assert.Less(t, strings.Index(out, "gpt.js"), strings.Index(out, "/app.js"))
}

func TestRender_KeepsExistingIDAndAvoidsCollisions(t *testing.T) {
	r := newTestRenderer(t, Options{})
	res, doc := render(t, r,
		`<div id="adslot-1"></div>`+
			`<as24-ad-slot id="top" type="doubleclick" slot-id="1" sizes="[]"></as24-ad-slot>`+
			`<as24-ad-slot type="doubleclick" slot-id="2" sizes="[]"></as24-ad-slot>`, desktop)

	assert.Equal(t, "top", res.Decisions[0].ElementID)
	assert.Equal(t, "adslot-2", res.Decisions[1].ElementID)
	assert.Equal(t, 1, doc.Find("#top-container").Length())
	assert.Equal(t, 1, doc.Find("#adslot-2-container").Length())
}

func TestRender_Targeting(t *testing.T) {
	r := newTestRenderer(t, Options{})
	page := `<html><head><script type="adtargeting/json">{"make":"bmw","device":"forced"}</script></head><body>` + contentSlot + `</body></html>`
	res, err := r.Render(context.Background(), strings.NewReader(page), desktop, targeting.KeyValues{"device": {"mobile"}, "country": {"DE"}})
	require.NoError(t, err)
	out, err := res.HTML()
	require.NoError(t, err)

	assert.Equal(t, []string{"forced"}, res.Targeting["device"])
	assert.Contains(t, out, `googletag.pubads().setTargeting("country",["DE"]);`)
	assert.Contains(t, out, `googletag.pubads().setTargeting("make",["bmw"]);`)
	assert.Contains(t, out, `googletag.pubads().setTargeting("device",["forced"]);`)
}

func TestRender_EscapesSlotIDs(t *testing.T) {
	r := newTestRenderer(t, Options{})
	_, doc := render(t, r, `<as24-ad-slot type="doubleclick" slot-id="&lt;/script&gt;&lt;b&gt;" sizes="[]"></as24-ad-slot>`, desktop)

	bootstrap := doc.Find("body > script").Last().Text()
	assert.Contains(t, bootstrap, `"\u003c/script\u003e\u003cb\u003e"`)
	assert.Equal(t, 0, doc.Find("b").Length())
}

func TestRender_PlacementPreset(t *testing.T) {
	store := models.NewInMemoryPlacementStore()
	require.NoError(t, store.ReloadAll([]models.Placement{{
		ID:          "content2",
		AdType:      "doubleclick",
		SlotID:      "/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2",
		SizeMapping: "[[[0,0],[[320,50]]]]",
	}}))
	r := newTestRenderer(t, Options{Placements: store})

	res, doc := render(t, r, `<as24-ad-slot placement="content2"></as24-ad-slot><as24-ad-slot placement="unknown"></as24-ad-slot>`, desktop)

	require.Len(t, res.Decisions, 2)
	assert.True(t, res.Decisions[0].Eligible)
	assert.Equal(t, "content2", res.Decisions[0].Placement)
	assert.Equal(t, slot.ReasonUnsupportedType, res.Decisions[1].Reason)
	assert.Equal(t, 1, doc.Find(`as24-ad-slot[sizes="[[320,50]]"]`).Length())
}

func TestRender_MultipleElementNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(DefaultElementName, Definition{}))
	require.NoError(t, reg.Define("gam-ad-slot", Definition{Gate: slot.NewGate(slot.Config{AdType: "gam"})}))
	r := NewRenderer(reg, Options{})

	res, err := r.Render(context.Background(), strings.NewReader(
		`<gam-ad-slot type="gam" slot-id="first" sizes="[]"></gam-ad-slot>`+
			`<as24-ad-slot type="doubleclick" slot-id="second" sizes="[[300,250]]"></as24-ad-slot>`), desktop, nil)
	require.NoError(t, err)

	// decisions follow document order, not registration order
	require.Len(t, res.Decisions, 2)
	assert.Equal(t, 0, res.Decisions[0].Index)
	assert.Equal(t, "gam-ad-slot", res.Decisions[0].Element)
	assert.Equal(t, "first", res.Decisions[0].SlotID)
	assert.Equal(t, 1, res.Decisions[1].Index)
	assert.Equal(t, DefaultElementName, res.Decisions[1].Element)
	assert.Equal(t, "second", res.Decisions[1].SlotID)
	assert.Equal(t, 2, res.Eligible())

	out, err := res.HTML()
	require.NoError(t, err)
	first := strings.Index(out, `googletag.defineSlot("first"`)
	second := strings.Index(out, `googletag.defineSlot("second"`)
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Less(t, strings.Index(out, `googletag.display("adslot-1-container")`), strings.Index(out, `googletag.display("adslot-2-container")`))
}
