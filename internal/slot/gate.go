package slot

import (
	"math"
	"strconv"
	"strings"
)

// Defaults for the gate configuration.
const (
	DefaultAdType           = "doubleclick"
	DefaultOptOutFragment   = "ads-off"
	DefaultExcludedUserType = "D"
)

// Reason labels the outcome of an evaluation. It is diagnostic only: every
// reason other than ReasonEligible means the slot is silently not rendered.
type Reason string

const (
	ReasonEligible        Reason = "eligible"
	ReasonAdsOff          Reason = "ads_off"
	ReasonExcludedUser    Reason = "excluded_user"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonMissingSlotID   Reason = "missing_slot_id"
	ReasonInvalidSizes    Reason = "invalid_sizes"
	ReasonMinXResolution  Reason = "min_x_resolution"
	ReasonMaxXResolution  Reason = "max_x_resolution"
	ReasonMinYResolution  Reason = "min_y_resolution"
	ReasonMaxYResolution  Reason = "max_y_resolution"
)

// Reasons lists every reason in evaluation order.
var Reasons = []Reason{
	ReasonEligible,
	ReasonAdsOff,
	ReasonExcludedUser,
	ReasonUnsupportedType,
	ReasonMissingSlotID,
	ReasonInvalidSizes,
	ReasonMinXResolution,
	ReasonMaxXResolution,
	ReasonMinYResolution,
	ReasonMaxYResolution,
}

// Config controls which values the gate treats as special.
type Config struct {
	AdType           string
	OptOutFragment   string
	ExcludedUserType string
}

// DefaultConfig returns the stock doubleclick configuration.
func DefaultConfig() Config {
	return Config{
		AdType:           DefaultAdType,
		OptOutFragment:   DefaultOptOutFragment,
		ExcludedUserType: DefaultExcludedUserType,
	}
}

// Result is the outcome of evaluating one declaration.
type Result struct {
	Eligible bool     `json:"eligible"`
	Reason   Reason   `json:"reason"`
	Sizes    SizeList `json:"sizes"`
	// SizesAttribute is the flattened list to write back onto the element's
	// sizes attribute. Only set when the sizes came from a size mapping.
	SizesAttribute string `json:"sizes_attribute,omitempty"`
	FromMapping    bool   `json:"from_mapping"`
}

// Gate decides whether an ad slot may render and with which sizes.
// A Gate holds no mutable state and is safe for concurrent use.
type Gate struct {
	cfg Config
}

// NewGate builds a Gate. Empty config fields fall back to the defaults.
func NewGate(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.AdType == "" {
		cfg.AdType = def.AdType
	}
	if cfg.OptOutFragment == "" {
		cfg.OptOutFragment = def.OptOutFragment
	}
	if cfg.ExcludedUserType == "" {
		cfg.ExcludedUserType = def.ExcludedUserType
	}
	return &Gate{cfg: cfg}
}

// Config returns the effective configuration.
func (g *Gate) Config() Config {
	return g.cfg
}

// Evaluate runs the eligibility checks in order and stops at the first one
// that fails.
func (g *Gate) Evaluate(d Declaration, env Environment) Result {
	if strings.TrimPrefix(env.URLFragment, "#") == g.cfg.OptOutFragment {
		return ineligible(ReasonAdsOff)
	}
	if env.UserType == g.cfg.ExcludedUserType {
		return ineligible(ReasonExcludedUser)
	}
	if d.Type != g.cfg.AdType {
		return ineligible(ReasonUnsupportedType)
	}
	if d.SlotID == "" {
		return ineligible(ReasonMissingSlotID)
	}

	parsed := ParseSizeConfig(d.Sizes, d.SizeMapping)
	if parsed.Kind == KindMalformed {
		return ineligible(ReasonInvalidSizes)
	}

	if !aboveMin(d.MinXResolution, env.ViewportWidth) {
		return ineligible(ReasonMinXResolution)
	}
	if !belowMax(d.MaxXResolution, env.ViewportWidth) {
		return ineligible(ReasonMaxXResolution)
	}
	if !aboveMin(d.MinYResolution, env.ViewportHeight) {
		return ineligible(ReasonMinYResolution)
	}
	if !belowMax(d.MaxYResolution, env.ViewportHeight) {
		return ineligible(ReasonMaxYResolution)
	}

	res := Result{Eligible: true, Reason: ReasonEligible}
	if parsed.Kind == KindSizeMapping {
		res.Sizes = parsed.Mapping.Flatten()
		res.SizesAttribute = res.Sizes.String()
		res.FromMapping = true
	} else {
		res.Sizes = parsed.Sizes
	}
	return res
}

func ineligible(r Reason) Result {
	return Result{Reason: r}
}

// aboveMin reports whether viewport is strictly greater than the bound.
// An absent or blank bound always passes, an unparseable one never does.
func aboveMin(bound Attr, viewport int) bool {
	if !bound.Present() {
		return true
	}
	b, ok := parseBound(bound.Value)
	return ok && float64(viewport) > b
}

// belowMax reports whether viewport is strictly less than the bound.
func belowMax(bound Attr, viewport int) bool {
	if !bound.Present() {
		return true
	}
	b, ok := parseBound(bound.Value)
	return ok && float64(viewport) < b
}

func parseBound(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
