package slot

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSlotID = "/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2"

func baseAttrs() map[string]string {
	return map[string]string{
		AttrType:   "doubleclick",
		AttrSlotID: testSlotID,
		AttrSizes:  "[[300,100],[728,90]]",
	}
}

func withAttr(key, value string) map[string]string {
	attrs := baseAttrs()
	attrs[key] = value
	return attrs
}

func TestGateEvaluate_Eligible(t *testing.T) {
	g := NewGate(Config{})
	res := g.Evaluate(DeclarationFromMap(baseAttrs()), Environment{ViewportWidth: 1024, ViewportHeight: 768})

	assert.True(t, res.Eligible)
	assert.Equal(t, ReasonEligible, res.Reason)
	assert.Equal(t, SizeList{{300, 100}, {728, 90}}, res.Sizes)
	assert.False(t, res.FromMapping)
	assert.Empty(t, res.SizesAttribute)
}

func TestGateEvaluate_ResolutionGates(t *testing.T) {
	const w, h = 1024, 768
	env := Environment{ViewportWidth: w, ViewportHeight: h}
	g := NewGate(DefaultConfig())

	tests := []struct {
		name     string
		attr     string
		bound    int
		eligible bool
		reason   Reason
	}{
		{"width above min", AttrMinXResolution, w - 1, true, ReasonEligible},
		{"width below min", AttrMinXResolution, w + 1, false, ReasonMinXResolution},
		{"width equal min", AttrMinXResolution, w, false, ReasonMinXResolution},
		{"width above max", AttrMaxXResolution, w - 1, false, ReasonMaxXResolution},
		{"width below max", AttrMaxXResolution, w + 1, true, ReasonEligible},
		{"width equal max", AttrMaxXResolution, w, false, ReasonMaxXResolution},
		{"height above min", AttrMinYResolution, h - 1, true, ReasonEligible},
		{"height below min", AttrMinYResolution, h + 1, false, ReasonMinYResolution},
		{"height equal min", AttrMinYResolution, h, false, ReasonMinYResolution},
		{"height above max", AttrMaxYResolution, h - 1, false, ReasonMaxYResolution},
		{"height below max", AttrMaxYResolution, h + 1, true, ReasonEligible},
		{"height equal max", AttrMaxYResolution, h, false, ReasonMaxYResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Evaluate(DeclarationFromMap(withAttr(tt.attr, strconv.Itoa(tt.bound))), env)
			assert.Equal(t, tt.eligible, res.Eligible)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestGateEvaluate_InvalidBound(t *testing.T) {
	g := NewGate(DefaultConfig())
	env := Environment{ViewportWidth: 1024, ViewportHeight: 768}

	res := g.Evaluate(DeclarationFromMap(withAttr(AttrMinXResolution, "wide")), env)
	assert.False(t, res.Eligible)
	assert.Equal(t, ReasonMinXResolution, res.Reason)

	res = g.Evaluate(DeclarationFromMap(withAttr(AttrMaxYResolution, "NaN")), env)
	assert.False(t, res.Eligible)
	assert.Equal(t, ReasonMaxYResolution, res.Reason)

	res = g.Evaluate(DeclarationFromMap(withAttr(AttrMinXResolution, "abc")), env)
	assert.False(t, res.Eligible)
	assert.Equal(t, ReasonMinXResolution, res.Reason)

	res = g.Evaluate(DeclarationFromMap(withAttr(AttrMaxXResolution, " 1024.5 ")), env)
	assert.True(t, res.Eligible)

	// blank bounds count as absent
	for _, attr := range []string{AttrMinXResolution, AttrMaxXResolution, AttrMinYResolution, AttrMaxYResolution} {
		for _, v := range []string{"", "  "} {
			res = g.Evaluate(DeclarationFromMap(withAttr(attr, v)), env)
			assert.True(t, res.Eligible, "%s=%q", attr, v)
		}
	}
}

func TestGateEvaluate_Rejections(t *testing.T) {
	g := NewGate(DefaultConfig())
	env := Environment{ViewportWidth: 1024, ViewportHeight: 768}

	noSlot := baseAttrs()
	delete(noSlot, AttrSlotID)

	both := withAttr(AttrSizeMapping, "[]")

	neither := baseAttrs()
	delete(neither, AttrSizes)

	tests := []struct {
		name   string
		attrs  map[string]string
		env    Environment
		reason Reason
	}{
		{"ads off", baseAttrs(), Environment{URLFragment: "ads-off"}, ReasonAdsOff},
		{"ads off with hash", baseAttrs(), Environment{URLFragment: "#ads-off"}, ReasonAdsOff},
		{"dealer", baseAttrs(), Environment{UserType: "D"}, ReasonExcludedUser},
		{"unsupported type", map[string]string{AttrType: "super-ads"}, env, ReasonUnsupportedType},
		{"missing type", map[string]string{AttrSlotID: "1", AttrSizes: "[]"}, env, ReasonUnsupportedType},
		{"missing slot id", noSlot, env, ReasonMissingSlotID},
		{"empty slot id", withAttr(AttrSlotID, ""), env, ReasonMissingSlotID},
		{"bad sizes", withAttr(AttrSizes, "a"), env, ReasonInvalidSizes},
		{"bad mapping", map[string]string{AttrType: "doubleclick", AttrSlotID: "1", AttrSizeMapping: "a"}, env, ReasonInvalidSizes},
		{"both", both, env, ReasonInvalidSizes},
		{"neither", neither, env, ReasonInvalidSizes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Evaluate(DeclarationFromMap(tt.attrs), tt.env)
			assert.False(t, res.Eligible)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Nil(t, res.Sizes)
		})
	}
}

func TestGateEvaluate_OrderOfChecks(t *testing.T) {
	g := NewGate(DefaultConfig())
	// Everything is wrong; the opt-out fragment is reported first.
	res := g.Evaluate(DeclarationFromMap(map[string]string{AttrType: "other"}), Environment{URLFragment: "ads-off", UserType: "D"})
	assert.Equal(t, ReasonAdsOff, res.Reason)

	res = g.Evaluate(DeclarationFromMap(map[string]string{AttrType: "other"}), Environment{UserType: "D"})
	assert.Equal(t, ReasonExcludedUser, res.Reason)
}

func TestGateEvaluate_EmptySizes(t *testing.T) {
	g := NewGate(DefaultConfig())

	res := g.Evaluate(DeclarationFromMap(map[string]string{AttrType: "doubleclick", AttrSlotID: "1", AttrSizes: "[]"}), Environment{})
	assert.True(t, res.Eligible)
	assert.Equal(t, SizeList{}, res.Sizes)

	res = g.Evaluate(DeclarationFromMap(map[string]string{AttrType: "doubleclick", AttrSlotID: "1", AttrSizeMapping: "[]"}), Environment{})
	assert.True(t, res.Eligible)
	assert.True(t, res.FromMapping)
	assert.Equal(t, "[]", res.SizesAttribute)
}

func TestGateEvaluate_SizeMapping(t *testing.T) {
	g := NewGate(DefaultConfig())
	d := DeclarationFromMap(map[string]string{
		AttrType:        "doubleclick",
		AttrSlotID:      "1",
		AttrSizeMapping: "[[[728,300],[[728,90],[728,300]]],[[0,0],[[300,100],[300,50],[320,50],[320,100]]]]",
	})

	res := g.Evaluate(d, Environment{ViewportWidth: 375, ViewportHeight: 667})
	assert.True(t, res.Eligible)
	assert.True(t, res.FromMapping)
	assert.Equal(t, "[[728,90],[728,300],[300,100],[300,50],[320,50],[320,100]]", res.SizesAttribute)
	assert.Len(t, res.Sizes, 6)
}

func TestGateEvaluate_CustomConfig(t *testing.T) {
	g := NewGate(Config{AdType: "gam", OptOutFragment: "noads", ExcludedUserType: "X"})
	d := DeclarationFromMap(map[string]string{AttrType: "gam", AttrSlotID: "1", AttrSizes: "[]"})

	assert.True(t, g.Evaluate(d, Environment{URLFragment: "ads-off", UserType: "D"}).Eligible)
	assert.Equal(t, ReasonAdsOff, g.Evaluate(d, Environment{URLFragment: "noads"}).Reason)
	assert.Equal(t, ReasonExcludedUser, g.Evaluate(d, Environment{UserType: "X"}).Reason)
}
