package patch

import (
	"encoding/json"
	"fmt"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
	"github.com/stategraph/stategraph/internal/writeback"
)

// addNode inserts an empty child state into the parent's states object,
// creating the states property when the parent has none. Any extra data on
// the patched node stays structural; the source gains only "key: {}".
func (s *session) addNode(p api.Patch) ([]api.TextEdit, error) {
	var node api.Node
	if err := json.Unmarshal(p.Value, &node); err != nil {
		return nil, fmt.Errorf("node value: %w", err)
	}
	if node.Data.Key == "" {
		return nil, fmt.Errorf("node %s has no key", p.Path[1])
	}
	loc, ok := s.m.NodeLocators[node.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: parent node %s", ErrNoSite, node.ParentID)
	}
	parent, err := relocate(s.m.Config, loc)
	if err != nil {
		return nil, err
	}
	key := writeback.Key(node.Data.Key, s.quote)
	states, ok := findProperty(parent.Value, "states")
	if !ok {
		return []api.TextEdit{s.insertProperty(parent.Value, "states", "{ "+key+": {} }")}, nil
	}
	if states.Value.Kind() != source.KindObject {
		return nil, fmt.Errorf("%w: states of %s is not an object literal", ErrUnsupportedPatch, node.ParentID)
	}
	return []api.TextEdit{s.insertProperty(states.Value, key, "{}")}, nil
}

// removeNode deletes the node's whole "key: { ... }" property, children
// included. Edges into the removed subtree are the caller's concern.
func (s *session) removeNode(p api.Patch) ([]api.TextEdit, error) {
	id := p.Path[1]
	loc, ok := s.m.NodeLocators[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", ErrNoSite, id)
	}
	st, err := relocate(s.m.Config, loc)
	if err != nil {
		return nil, err
	}
	if !st.HasProp {
		return nil, fmt.Errorf("%w: cannot remove the machine root", ErrUnsupportedPatch)
	}
	return []api.TextEdit{s.removeSpan(st.Prop.Span.Start, st.Prop.Span.End)}, nil
}

// replaceNodeField rewrites a single data field on a node. Fields whose
// patched value equals the extraction default are erased from the source
// instead of written out.
func (s *session) replaceNodeField(p api.Patch) ([]api.TextEdit, error) {
	id, field := p.Path[1], p.Path[3]
	loc, ok := s.m.NodeLocators[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", ErrNoSite, id)
	}
	st, err := relocate(s.m.Config, loc)
	if err != nil {
		return nil, err
	}
	if st.Value.Kind() != source.KindObject {
		return nil, fmt.Errorf("%w: node %s is not an object literal", ErrUnsupportedPatch, id)
	}

	var val any
	if len(p.Value) > 0 {
		if err := json.Unmarshal(p.Value, &val); err != nil {
			return nil, fmt.Errorf("field value: %w", err)
		}
	}
	str, _ := val.(string)

	switch field {
	case "key":
		if str == "" {
			return nil, fmt.Errorf("%w: key must be a non-empty string", ErrUnsupportedPatch)
		}
		if !st.HasProp {
			return nil, fmt.Errorf("%w: cannot rename the machine root", ErrUnsupportedPatch)
		}
		return []api.TextEdit{{
			Start:   st.Prop.KeySpan.Start,
			End:     st.Prop.KeySpan.End,
			NewText: writeback.Key(str, s.quote),
		}}, nil
	case "initial":
		return s.setScalarProperty(st.Value, "initial", writeback.String(str, s.quote), str == ""), nil
	case "type":
		isDefault := str == "" || str == string(api.NodeTypeNormal)
		return s.setScalarProperty(st.Value, "type", writeback.String(str, s.quote), isDefault), nil
	case "history":
		isDefault := str == "" || str == string(api.HistoryShallow)
		return s.setScalarProperty(st.Value, "history", writeback.String(str, s.quote), isDefault), nil
	case "description":
		return s.setScalarProperty(st.Value, "description", writeback.String(str, s.quote), str == ""), nil
	default:
		return nil, fmt.Errorf("%w: node field %q", ErrUnsupportedPatch, field)
	}
}
