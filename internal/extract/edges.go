package extract

import (
	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// extractEdgeGroup reads one transition group value: a bare target string,
// a transition object, null/undefined for a targetless transition, or an
// array of those. Each element becomes its own edge.
func (c *Context) extractEdgeGroup(node *api.Node, event api.EventTypeData, v source.Expr, loc Locator) {
	if v.Kind() == source.KindArray {
		for i, el := range v.Elements() {
			c.extractTransition(node, event, el, loc.Child(Index(i)))
		}
		return
	}
	c.extractTransition(node, event, v, loc)
}

func (c *Context) extractTransition(node *api.Node, event api.EventTypeData, v source.Expr, loc Locator) {
	switch v.Kind() {
	case source.KindString, source.KindNull, source.KindUndefined, source.KindObject:
	default:
		c.errorf(api.ErrTransitionPropertyUnhandled, v.Span(), "unsupported transition value (%s)", v.Kind())
		return
	}

	edge := &api.Edge{
		ID:      c.nextEdgeID(),
		Source:  node.ID,
		Targets: []string{},
		Data:    api.EdgeData{Event: event, Internal: true},
	}
	c.Digraph.Edges[edge.ID] = edge
	c.EdgeLocators[edge.ID] = loc

	switch v.Kind() {
	case source.KindString:
		raw, _ := v.AsString()
		c.Pending = append(c.Pending, PendingTarget{EdgeID: edge.ID, Source: node.ID, Raw: raw, Span: v.Span()})
	case source.KindObject:
		c.extractTransitionObject(node, edge, v)
	}
	// Null and undefined are explicit targetless transitions.
}

// extractTransitionObject reads target, actions and description from a
// transition object. Guard and reenter belong to the write path's
// vocabulary and are skipped without error here so written output
// re-extracts cleanly.
func (c *Context) extractTransitionObject(node *api.Node, edge *api.Edge, v source.Expr) {
	c.scanProperties(v.Properties(), func(p source.Property) {
		if !c.readablePair(p) {
			return
		}
		switch p.Key {
		case "target":
			c.extractTargets(node, edge, p.Value)
		case "actions":
			edge.Data.Actions = c.extractBlocks(api.BlockAction, edge.ID, p.Value)
		case "description":
			s, ok := p.Value.AsString()
			if !ok {
				c.errorf(api.ErrTransitionPropertyUnhandled, p.Value.Span(), "transition description must be a string literal")
				return
			}
			edge.Data.Description = s
		case "guard", "reenter":
		default:
			c.errorf(api.ErrTransitionPropertyUnhandled, p.Span, "unhandled transition property %q", p.Key)
		}
	})
}

func (c *Context) extractTargets(node *api.Node, edge *api.Edge, v source.Expr) {
	switch v.Kind() {
	case source.KindString:
		raw, _ := v.AsString()
		c.Pending = append(c.Pending, PendingTarget{EdgeID: edge.ID, Source: node.ID, Raw: raw, Span: v.Span()})
	case source.KindNull, source.KindUndefined:
	case source.KindArray:
		for _, el := range v.Elements() {
			raw, ok := el.AsString()
			if !ok {
				c.errorf(api.ErrTransitionPropertyUnhandled, el.Span(), "transition target must be a string literal")
				continue
			}
			c.Pending = append(c.Pending, PendingTarget{EdgeID: edge.ID, Source: node.ID, Raw: raw, Span: el.Span()})
		}
	default:
		c.errorf(api.ErrTransitionPropertyUnhandled, v.Span(), "unsupported transition target (%s)", v.Kind())
	}
}
