package patch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/resolve"
	"github.com/stategraph/stategraph/internal/source"
	"github.com/stategraph/stategraph/internal/writeback"
)

// addEdge inserts a transition on the edge's source state at the site its
// event kind implies. An existing single transition is wrapped into an
// array, an existing array is appended to.
func (s *session) addEdge(p api.Patch) ([]api.TextEdit, error) {
	var edge api.Edge
	if err := json.Unmarshal(p.Value, &edge); err != nil {
		return nil, fmt.Errorf("edge value: %w", err)
	}
	loc, ok := s.m.NodeLocators[edge.Source]
	if !ok {
		return nil, fmt.Errorf("%w: source node %s", ErrNoSite, edge.Source)
	}
	st, err := relocate(s.m.Config, loc)
	if err != nil {
		return nil, err
	}
	if st.Value.Kind() != source.KindObject {
		return nil, fmt.Errorf("%w: source node %s is not an object literal", ErrUnsupportedPatch, edge.Source)
	}
	dg, err := s.digraph()
	if err != nil {
		return nil, err
	}
	value, err := s.renderTransition(dg, edge)
	if err != nil {
		return nil, err
	}

	ev := edge.Data.Event
	switch ev.Kind {
	case api.EventNamed:
		on, ok := findProperty(st.Value, "on")
		if !ok {
			inner := "{ " + writeback.Key(ev.EventType, s.quote) + ": " + value + " }"
			return []api.TextEdit{s.insertProperty(st.Value, "on", inner)}, nil
		}
		if on.Value.Kind() != source.KindObject {
			return nil, fmt.Errorf("%w: on of %s is not an object literal", ErrUnsupportedPatch, edge.Source)
		}
		return s.appendTransition(on.Value, ev.EventType, value)
	case api.EventAlways:
		return s.appendTransition(st.Value, "always", value)
	case api.EventStateDone:
		return s.appendTransition(st.Value, "onDone", value)
	case api.EventInvocationDone, api.EventInvocationError:
		inv, err := s.invokeSite(dg, edge.Source, st.Value, ev.InvocationID)
		if err != nil {
			return nil, err
		}
		key := "onDone"
		if ev.Kind == api.EventInvocationError {
			key = "onError"
		}
		return s.appendTransition(inv, key, value)
	default:
		return nil, fmt.Errorf("%w: cannot insert a %s transition", ErrUnsupportedPatch, ev.Kind)
	}
}

// appendTransition adds value under key on owner, handling the three
// shapes a transition property can take: absent, single, and array.
func (s *session) appendTransition(owner source.Expr, key, value string) ([]api.TextEdit, error) {
	prop, ok := findProperty(owner, key)
	if !ok {
		return []api.TextEdit{s.insertProperty(owner, writeback.Key(key, s.quote), value)}, nil
	}
	existing := prop.Value
	if existing.Kind() == source.KindArray {
		els := existing.Elements()
		if len(els) == 0 {
			at := existing.Span().Start + 1
			return []api.TextEdit{{Start: at, End: at, NewText: value}}, nil
		}
		at := els[len(els)-1].Span().End
		return []api.TextEdit{{Start: at, End: at, NewText: ", " + value}}, nil
	}
	span := existing.Span()
	wrapped := "[" + existing.Text() + ", " + value + "]"
	return []api.TextEdit{{Start: span.Start, End: span.End, NewText: wrapped}}, nil
}

// renderTransition renders the minimal literal describing an edge: a bare
// descriptor string when only a single target is set, undefined when the
// edge is targetless and empty, an object literal otherwise.
func (s *session) renderTransition(dg *api.Digraph, edge api.Edge) (string, error) {
	var descs []string
	for _, t := range edge.Targets {
		d, err := resolve.Descriptor(dg, s.m.DeclaredIDs, edge.Source, t)
		if err != nil {
			return "", err
		}
		descs = append(descs, writeback.String(d, s.quote))
	}

	plain := len(edge.Data.Actions) == 0 && edge.Data.Guard == "" &&
		edge.Data.Description == "" && edge.Data.Internal
	if plain {
		switch len(descs) {
		case 0:
			return "undefined", nil
		case 1:
			return descs[0], nil
		}
	}

	var fields []string
	switch len(descs) {
	case 0:
	case 1:
		fields = append(fields, "target: "+descs[0])
	default:
		fields = append(fields, "target: ["+strings.Join(descs, ", ")+"]")
	}
	if len(edge.Data.Actions) > 0 {
		names := make([]string, 0, len(edge.Data.Actions))
		for _, bid := range edge.Data.Actions {
			block := dg.Blocks[bid]
			if block == nil {
				return "", fmt.Errorf("edge references unknown block %s", bid)
			}
			names = append(names, writeback.String(block.SourceID, s.quote))
		}
		fields = append(fields, "actions: ["+strings.Join(names, ", ")+"]")
	}
	if bid := edge.Data.Guard; bid != "" {
		block := dg.Blocks[bid]
		if block == nil {
			return "", fmt.Errorf("edge references unknown block %s", bid)
		}
		fields = append(fields, "guard: "+writeback.String(block.SourceID, s.quote))
	}
	if !edge.Data.Internal {
		fields = append(fields, "reenter: true")
	}
	if d := edge.Data.Description; d != "" {
		fields = append(fields, "description: "+writeback.String(d, s.quote))
	}
	if len(fields) == 0 {
		return "undefined", nil
	}
	return "{ " + strings.Join(fields, ", ") + " }", nil
}

// invokeSite finds the invocation object literal carrying invocationID on
// the given state, matching by declared id first and source id second.
func (s *session) invokeSite(dg *api.Digraph, nodeID string, stateObj source.Expr, invocationID string) (source.Expr, error) {
	node := dg.Nodes[nodeID]
	if node == nil {
		return nil, fmt.Errorf("%w: node %s", ErrNoSite, nodeID)
	}
	idx := -1
	for i, bid := range node.Data.Invoke {
		block := dg.Blocks[bid]
		if block == nil {
			continue
		}
		if (block.Actor != nil && block.Actor.ID == invocationID) || block.SourceID == invocationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: no invocation %q on node %s", ErrNoSite, invocationID, nodeID)
	}
	prop, ok := findProperty(stateObj, "invoke")
	if !ok {
		return nil, fmt.Errorf("%w: no invoke on node %s", ErrNoSite, nodeID)
	}
	target := prop.Value
	if target.Kind() == source.KindArray {
		els := target.Elements()
		if idx >= len(els) {
			return nil, fmt.Errorf("%w: invocation %d of node %s", ErrNoSite, idx, nodeID)
		}
		target = els[idx]
	} else if idx != 0 {
		return nil, fmt.Errorf("%w: invocation %d of node %s", ErrNoSite, idx, nodeID)
	}
	if target.Kind() != source.KindObject {
		return nil, fmt.Errorf("%w: invocation of node %s is not an object literal", ErrUnsupportedPatch, nodeID)
	}
	return target, nil
}

// removeEdge deletes the transition literal the edge was extracted from.
// A lone element inside an array is removed without collapsing the array.
func (s *session) removeEdge(p api.Patch) ([]api.TextEdit, error) {
	id := p.Path[1]
	loc, ok := s.m.EdgeLocators[id]
	if !ok {
		return nil, fmt.Errorf("%w: edge %s", ErrNoSite, id)
	}
	st, err := relocate(s.m.Config, loc)
	if err != nil {
		return nil, err
	}
	if st.Elem >= 0 {
		span := st.Value.Span()
		return []api.TextEdit{s.removeSpan(span.Start, span.End)}, nil
	}
	if !st.HasProp {
		return nil, fmt.Errorf("%w: edge %s has no owning property", ErrNoSite, id)
	}
	return []api.TextEdit{s.removeSpan(st.Prop.Span.Start, st.Prop.Span.End)}, nil
}
