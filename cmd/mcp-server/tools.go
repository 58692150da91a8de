package main

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/api"
	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/slot"
)

// EvaluateInput is the argument of evaluate_ad_slot.
type EvaluateInput struct {
	Attributes     map[string]string `json:"attributes" jsonschema:"raw ad slot element attributes, e.g. type, slot-id, sizes, size-mapping, min-x-resolution"`
	ViewportWidth  int               `json:"viewport_width,omitempty" jsonschema:"layout viewport width in CSS pixels"`
	ViewportHeight int               `json:"viewport_height,omitempty" jsonschema:"layout viewport height in CSS pixels"`
	URLFragment    string            `json:"url_fragment,omitempty" jsonschema:"page URL fragment without the leading #"`
	UserType       string            `json:"user_type,omitempty" jsonschema:"CustomerType value of the user cookie"`
}

// EvaluateOutput mirrors the gate result with sizes in attribute form.
type EvaluateOutput struct {
	Eligible    bool   `json:"eligible"`
	Reason      string `json:"reason"`
	Sizes       string `json:"sizes"`
	FromMapping bool   `json:"from_mapping"`
}

// RenderInput is the argument of render_page.
type RenderInput struct {
	HTML           string `json:"html" jsonschema:"publisher HTML document"`
	ViewportWidth  int    `json:"viewport_width,omitempty" jsonschema:"layout viewport width in CSS pixels"`
	ViewportHeight int    `json:"viewport_height,omitempty" jsonschema:"layout viewport height in CSS pixels"`
	URLFragment    string `json:"url_fragment,omitempty" jsonschema:"page URL fragment without the leading #"`
	UserType       string `json:"user_type,omitempty" jsonschema:"CustomerType value of the user cookie"`
}

// SlotOutcome is one slot of a rendered page.
type SlotOutcome struct {
	Element   string `json:"element"`
	SlotID    string `json:"slot_id"`
	ElementID string `json:"element_id,omitempty"`
	Eligible  bool   `json:"eligible"`
	Reason    string `json:"reason"`
	Sizes     string `json:"sizes"`
}

// RenderOutput is the rewritten page and what happened to each slot.
type RenderOutput struct {
	HTML           string        `json:"html"`
	Eligible       int           `json:"eligible"`
	ScriptInserted bool          `json:"script_inserted"`
	Slots          []SlotOutcome `json:"slots"`
}

// ListPlacementsInput is the argument of list_placements.
type ListPlacementsInput struct {
	Prefix string `json:"prefix,omitempty" jsonschema:"only return placements whose id starts with this prefix"`
}

// ListPlacementsOutput lists the placement presets.
type ListPlacementsOutput struct {
	Placements []models.Placement `json:"placements"`
}

// GateTools exposes the slot gate over MCP.
type GateTools struct {
	srv    *api.Server
	logger *zap.Logger
}

func (g *GateTools) EvaluateAdSlot(ctx context.Context, req *mcp.CallToolRequest, in EvaluateInput) (*mcp.CallToolResult, EvaluateOutput, error) {
	res := g.srv.Evaluate(api.EvaluateRequest{
		Attributes:  in.Attributes,
		Environment: environment(in.ViewportWidth, in.ViewportHeight, in.URLFragment, in.UserType),
	})
	g.logger.Debug("evaluate_ad_slot", zap.Bool("eligible", res.Eligible), zap.String("reason", string(res.Reason)))
	return nil, EvaluateOutput{
		Eligible:    res.Eligible,
		Reason:      string(res.Reason),
		Sizes:       res.Sizes.String(),
		FromMapping: res.FromMapping,
	}, nil
}

func (g *GateTools) RenderPage(ctx context.Context, req *mcp.CallToolRequest, in RenderInput) (*mcp.CallToolResult, RenderOutput, error) {
	env := environment(in.ViewportWidth, in.ViewportHeight, in.URLFragment, in.UserType)
	res, err := g.srv.Renderer.Render(ctx, strings.NewReader(in.HTML), env, nil)
	if err != nil {
		return nil, RenderOutput{}, err
	}
	out, err := res.HTML()
	if err != nil {
		return nil, RenderOutput{}, err
	}

	slots := make([]SlotOutcome, 0, len(res.Decisions))
	for _, d := range res.Decisions {
		slots = append(slots, SlotOutcome{
			Element:   d.Element,
			SlotID:    d.SlotID,
			ElementID: d.ElementID,
			Eligible:  d.Eligible,
			Reason:    string(d.Reason),
			Sizes:     d.Sizes.String(),
		})
	}
	return nil, RenderOutput{HTML: out, Eligible: res.Eligible(), ScriptInserted: res.ScriptInserted, Slots: slots}, nil
}

func (g *GateTools) ListPlacements(ctx context.Context, req *mcp.CallToolRequest, in ListPlacementsInput) (*mcp.CallToolResult, ListPlacementsOutput, error) {
	out := []models.Placement{}
	for _, p := range g.srv.Placements.GetAllPlacements() {
		if strings.HasPrefix(p.ID, in.Prefix) {
			out = append(out, p)
		}
	}
	return nil, ListPlacementsOutput{Placements: out}, nil
}

// Register adds every tool to server.
func (g *GateTools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_ad_slot",
		Description: "Decide whether an ad slot declaration is eligible to render for a viewport, URL fragment and user type",
	}, g.EvaluateAdSlot)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "render_page",
		Description: "Rewrite a publisher HTML page: evaluate every ad slot element, add containers and the GPT bootstrap for eligible ones",
	}, g.RenderPage)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_placements",
		Description: "List the stored placement presets that ad slot elements can reference",
	}, g.ListPlacements)
}

func environment(w, h int, fragment, userType string) slot.Environment {
	return slot.Environment{ViewportWidth: w, ViewportHeight: h, URLFragment: fragment, UserType: userType}
}
