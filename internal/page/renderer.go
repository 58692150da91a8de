// Package page rewrites publisher HTML: every registered ad slot element is
// evaluated, eligible slots get a container and a GPT slot definition, and
// the GPT library is loaded once per document.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
	"github.com/patrickwarner/adslotgate/internal/slot"
	"github.com/patrickwarner/adslotgate/internal/targeting"
)

var tracer = observability.Tracer("adslotgate/page")

// Result is a rendered document plus what happened to each slot.
type Result struct {
	Decisions      []models.Decision
	ScriptInserted bool
	Targeting      targeting.KeyValues
	doc            *goquery.Document
}

// Eligible returns the number of eligible slots.
func (r *Result) Eligible() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Eligible {
			n++
		}
	}
	return n
}

// Write serializes the rewritten document to w.
func (r *Result) Write(w io.Writer) error {
	return html.Render(w, r.doc.Nodes[0])
}

// HTML returns the rewritten document as a string.
func (r *Result) HTML() (string, error) {
	var b strings.Builder
	if err := r.Write(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Options configures a Renderer.
type Options struct {
	ScriptURL string
	// Placements resolves placement="<id>" presets. Optional.
	Placements models.PlacementStore
	Logger     *zap.Logger
	Metrics    observability.MetricsRegistry
	// LogSampleRate is the fraction of per-slot debug logs emitted.
	LogSampleRate float64
}

// Renderer applies registered slot definitions to HTML documents.
// It is safe for concurrent use; each call works on its own document.
type Renderer struct {
	registry   *Registry
	loader     ScriptLoader
	placements models.PlacementStore
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	sampleRate float64
}

// NewRenderer creates a Renderer over registry.
func NewRenderer(registry *Registry, opts Options) *Renderer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewNoOpRegistry()
	}
	return &Renderer{
		registry:   registry,
		loader:     ScriptLoader{URL: opts.ScriptURL},
		placements: opts.Placements,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sampleRate: opts.LogSampleRate,
	}
}

// registration is an eligible slot waiting for its defineSlot call.
type registration struct {
	slotID      string
	sizes       slot.SizeList
	containerID string
}

// Render parses src, evaluates every registered element against env and
// returns the rewritten document. base holds request-derived targeting;
// targeting declared in the page overrides it. Only parse errors are
// returned: ineligible slots are recorded in the result and left untouched.
func (r *Renderer) Render(ctx context.Context, src io.Reader, env slot.Environment, base targeting.KeyValues) (*Result, error) {
	_, span := tracer.Start(ctx, "Renderer.Render")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{doc: doc}
	var regs []registration
	usedIDs := existingIDs(doc)

	names := r.registry.Names()
	if len(names) > 0 {
		// one selection keeps slots of different element names in page order
		doc.Find(strings.Join(names, ",")).Each(func(_ int, el *goquery.Selection) {
			name := goquery.NodeName(el)
			def, ok := r.registry.Lookup(name)
			if !ok {
				return
			}
			d := r.declaration(el)
			out := def.Gate.Evaluate(d, env)

			dec := models.Decision{
				Index:     len(res.Decisions),
				Element:   name,
				SlotID:    d.SlotID,
				AdType:    d.Type,
				Placement: d.Placement,
				Eligible:  out.Eligible,
				Reason:    out.Reason,
				Sizes:     out.Sizes,
			}
			r.metrics.IncrementSlotDecisions(string(out.Reason))

			if out.Eligible {
				if out.FromMapping {
					el.SetAttr(slot.AttrSizes, out.SizesAttribute)
				}
				id, ok := el.Attr("id")
				if !ok || id == "" {
					id = nextID(usedIDs)
					el.SetAttr("id", id)
				}
				containerID := id + "-container"
				usedIDs[containerID] = true
				el.AppendHtml(`<div id="` + html.EscapeString(containerID) + `"></div>`)

				dec.ElementID = id
				regs = append(regs, registration{slotID: d.SlotID, sizes: out.Sizes, containerID: containerID})
			}

			if observability.ShouldSample(r.sampleRate) {
				r.logger.Debug("ad slot evaluated",
					zap.String("element", name),
					zap.String("slot_id", d.SlotID),
					zap.Bool("eligible", out.Eligible),
					zap.String("reason", string(out.Reason)))
			}
			res.Decisions = append(res.Decisions, dec)
		})
	}

	res.Targeting = base.Merge(targeting.FromDocument(doc))
	r.metrics.RecordEligibleSlots(len(regs))

	if len(regs) > 0 {
		res.ScriptInserted = r.loader.Ensure(doc)
		if res.ScriptInserted {
			r.metrics.IncrementScriptInsertions()
		}
		script, err := bootstrapScript(regs, res.Targeting)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("build bootstrap: %w", err)
		}
		body := doc.Find("body").First()
		body.AppendHtml("<script>" + script + "</script>")
	}

	span.SetAttributes(
		attribute.Int("adslot.slots", len(res.Decisions)),
		attribute.Int("adslot.eligible", len(regs)),
		attribute.Bool("adslot.script_inserted", res.ScriptInserted),
	)
	if len(regs) == 0 {
		span.AddEvent("no eligible slots", trace.WithAttributes(attribute.String("viewport", strconv.Itoa(env.ViewportWidth)+"x"+strconv.Itoa(env.ViewportHeight))))
	}
	return res, nil
}

// declaration reads the element's attributes and fills absent ones from its
// placement preset, if any.
func (r *Renderer) declaration(el *goquery.Selection) slot.Declaration {
	d := slot.DeclarationFrom(el.Attr)
	if d.Placement == "" || r.placements == nil {
		return d
	}
	p := r.placements.GetPlacement(d.Placement)
	if p == nil {
		r.logger.Warn("unknown placement", zap.String("placement", d.Placement))
		return d
	}
	return p.Fill(d)
}

func existingIDs(doc *goquery.Document) map[string]bool {
	ids := make(map[string]bool)
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		ids[id] = true
	})
	return ids
}

// nextID returns the first adslot-<n> id not used in the document.
func nextID(used map[string]bool) string {
	for n := 1; ; n++ {
		id := "adslot-" + strconv.Itoa(n)
		if !used[id] && !used[id+"-container"] {
			used[id] = true
			return id
		}
	}
}

// bootstrapScript builds the inline googletag command queue for regs. Every
// value is JSON encoded, which also escapes <, > and & for script context.
func bootstrapScript(regs []registration, kv targeting.KeyValues) (string, error) {
	var b strings.Builder
	b.WriteString("window.googletag=window.googletag||{cmd:[]};googletag.cmd.push(function(){")
	for _, reg := range regs {
		id, err := json.Marshal(reg.slotID)
		if err != nil {
			return "", err
		}
		container, err := json.Marshal(reg.containerID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "googletag.defineSlot(%s,%s,%s).addService(googletag.pubads());", id, reg.sizes.String(), container)
	}
	for _, k := range kv.Keys() {
		key, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		vals, err := json.Marshal(kv[k])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "googletag.pubads().setTargeting(%s,%s);", key, vals)
	}
	b.WriteString("googletag.enableServices();")
	for _, reg := range regs {
		container, err := json.Marshal(reg.containerID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "googletag.display(%s);", container)
	}
	b.WriteString("});")
	return b.String(), nil
}
