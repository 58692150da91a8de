package slot

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserType(t *testing.T) {
	assert.Equal(t, "D", ParseUserType("CustomerType=D"))
	assert.Equal(t, "P", ParseUserType("Lang=de&CustomerType=P&X=1"))
	assert.Equal(t, "", ParseUserType(""))
	assert.Equal(t, "", ParseUserType("CustomerTypeD"))
	assert.Equal(t, "", ParseUserType("Other=D"))
}

func TestEnvironmentFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/render?vw=1280&vh=720&fragment=ads-off", nil)
	req.Header.Set("Cookie", "User=CustomerType=D")

	env := EnvironmentFromRequest(req, "")
	assert.Equal(t, Environment{ViewportWidth: 1280, ViewportHeight: 720, URLFragment: "ads-off", UserType: "D"}, env)
}

func TestEnvironmentFromRequest_ClientHints(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/render?vw=abc", nil)
	req.Header.Set("Sec-CH-Viewport-Width", "390")
	req.Header.Set("Sec-CH-Viewport-Height", "844")
	req.Header.Set("X-Url-Fragment", "top")
	req.AddCookie(&http.Cookie{Name: "Visitor", Value: "CustomerType=P"})

	env := EnvironmentFromRequest(req, "Visitor")
	assert.Equal(t, 390, env.ViewportWidth)
	assert.Equal(t, 844, env.ViewportHeight)
	assert.Equal(t, "top", env.URLFragment)
	assert.Equal(t, "P", env.UserType)
}

func TestEnvironmentFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/render", nil)
	req.Header.Set("Viewport-Width", "800")

	env := EnvironmentFromRequest(req, DefaultUserCookie)
	assert.Equal(t, 800, env.ViewportWidth)
	assert.Zero(t, env.ViewportHeight)
	assert.Empty(t, env.URLFragment)
	assert.Empty(t, env.UserType)
}

func TestDeclarationFrom(t *testing.T) {
	d := DeclarationFromMap(map[string]string{
		AttrType:           "doubleclick",
		AttrSlotID:         "1",
		AttrSizes:          "",
		AttrMinXResolution: "100",
		AttrPlacement:      "sidebar",
	})
	assert.Equal(t, "doubleclick", d.Type)
	assert.Equal(t, "1", d.SlotID)
	assert.Equal(t, Attr{Value: "", Set: true}, d.Sizes)
	assert.Equal(t, Attr{}, d.SizeMapping)
	assert.Equal(t, Attr{Value: "100", Set: true}, d.MinXResolution)
	assert.Equal(t, "sidebar", d.Placement)
}
