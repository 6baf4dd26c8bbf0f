// Package extract turns one factory call's configuration literal into a
// normalized digraph. Extraction is best-effort: anything it cannot read
// becomes a typed error on the pass context and the walk keeps going. It
// never fails hard on input shape.
package extract

import (
	"slices"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// RootFallbackID is the declared-id stand-in for machines whose root has no
// id property. Target descriptors reference such roots as "#(machine)".
const RootFallbackID = "(machine)"

// Machine extracts the digraph of one factory call. The returned context
// carries a nil Digraph plus a state_unhandled error when the call has no
// object-literal configuration.
func Machine(call source.MachineCall) *Context {
	c := newContext()
	if call.Config == nil {
		c.errorf(api.ErrStateUnhandled, call.Span, "machine call has no configuration argument")
		return c
	}
	if call.Config.Kind() != source.KindObject {
		c.errorf(api.ErrStateUnhandled, call.Config.Span(), "machine configuration is not an object literal")
		return c
	}

	c.Digraph = api.NewDigraph()
	root := c.newNode(nil, "", Locator{})
	c.Digraph.RootID = root.ID
	c.Root = c.Tree[root.ID]

	c.extractState(root, call.Config, Locator{})

	if root.Data.Key == "" {
		root.Data.Key = RootFallbackID
		c.Root.Key = RootFallbackID
		c.IDMap[RootFallbackID] = root.ID
	}
	return c
}

// extractState walks one state literal, filling the node's data and
// producing children, edges and blocks.
func (c *Context) extractState(node *api.Node, obj source.Expr, loc Locator) {
	c.scanProperties(obj.Properties(), func(p source.Property) {
		if !c.readablePair(p) {
			return
		}
		c.extractStateProperty(node, p, loc)
	})
}

func (c *Context) extractStateProperty(node *api.Node, p source.Property, loc Locator) {
	v := p.Value
	switch p.Key {
	case "id":
		s, ok := v.AsString()
		if !ok {
			c.errorf(api.ErrStatePropertyInvalid, v.Span(), "id must be a string literal")
			return
		}
		c.IDMap[s] = node.ID
		if node.ID == c.Digraph.RootID {
			node.Data.Key = s
			c.Root.Key = s
		}

	case "initial":
		s, ok := v.AsString()
		if !ok {
			c.errorf(api.ErrStatePropertyInvalid, v.Span(), "initial must be a string literal")
			return
		}
		node.Data.Initial = s

	case "type":
		c.extractType(node, v)

	case "history":
		c.extractHistory(node, v)

	case "description":
		s, ok := v.AsString()
		if !ok {
			c.errorf(api.ErrStatePropertyInvalid, v.Span(), "description must be a string literal")
			return
		}
		node.Data.Description = s

	case "tags":
		c.extractTags(node, v)

	case "meta":
		c.extractMeta(node, v)

	case "context":
		c.extractContext(node, v, p.Span)

	case "states":
		c.extractStates(node, v, loc)

	case "on":
		c.extractOn(node, v, loc)

	case "always":
		c.extractEdgeGroup(node, api.EventTypeData{Kind: api.EventAlways}, v, loc.Child(Key("always")))

	case "onDone":
		c.extractEdgeGroup(node, api.EventTypeData{Kind: api.EventStateDone}, v, loc.Child(Key("onDone")))

	case "entry":
		node.Data.Entry = c.extractBlocks(api.BlockAction, node.ID, v)

	case "exit":
		node.Data.Exit = c.extractBlocks(api.BlockAction, node.ID, v)

	case "invoke":
		c.extractInvoke(node, v, loc.Child(Key("invoke")))

	default:
		c.errorf(api.ErrStatePropertyUnhandled, p.Span, "unhandled state property %q", p.Key)
	}
}

func (c *Context) extractType(node *api.Node, v source.Expr) {
	s, ok := v.AsString()
	if !ok {
		c.errorf(api.ErrStateTypeInvalid, v.Span(), "state type must be a string literal")
		return
	}
	switch s {
	case "history":
		node.Data.Type = api.NodeTypeHistory
	case "parallel":
		node.Data.Type = api.NodeTypeParallel
	case "final":
		node.Data.Type = api.NodeTypeFinal
	case "atomic", "compound":
		node.Data.Type = api.NodeTypeNormal
	default:
		c.errorf(api.ErrStateTypeInvalid, v.Span(), "unknown state type %q", s)
	}
}

func (c *Context) extractHistory(node *api.Node, v source.Expr) {
	if s, ok := v.AsString(); ok {
		switch s {
		case "shallow":
			node.Data.History = api.HistoryShallow
		case "deep":
			node.Data.History = api.HistoryDeep
		default:
			c.errorf(api.ErrStateHistoryInvalid, v.Span(), "unknown history kind %q", s)
		}
		return
	}
	if b, ok := v.AsBool(); ok {
		if b {
			node.Data.History = api.HistoryDeep
		} else {
			node.Data.History = api.HistoryShallow
		}
		return
	}
	c.errorf(api.ErrStateHistoryInvalid, v.Span(), "history must be a string or boolean literal")
}

func (c *Context) extractTags(node *api.Node, v source.Expr) {
	if s, ok := v.AsString(); ok {
		node.Data.Tags = []string{s}
		return
	}
	if v.Kind() != source.KindArray {
		c.errorf(api.ErrStatePropertyInvalid, v.Span(), "tags must be a string or an array of strings")
		return
	}
	var tags []string
	for _, el := range v.Elements() {
		s, ok := el.AsString()
		if !ok {
			c.errorf(api.ErrStatePropertyInvalid, el.Span(), "tag must be a string literal")
			continue
		}
		tags = append(tags, s)
	}
	node.Data.Tags = tags
}

func (c *Context) extractMeta(node *api.Node, v source.Expr) {
	if v.Kind() != source.KindObject {
		c.errorf(api.ErrStatePropertyInvalid, v.Span(), "meta must be an object literal")
		return
	}
	var entries []api.MetaEntry
	c.scanProperties(v.Properties(), func(mp source.Property) {
		if !c.readablePair(mp) {
			return
		}
		val, ok := decodeValue(mp.Value)
		if !ok {
			c.errorf(api.ErrPropertyUnhandled, mp.Value.Span(), "meta value for %q is not plain data", mp.Key)
			return
		}
		entries = append(entries, api.MetaEntry{Key: mp.Key, Value: val})
	})
	// The reverse scan collected entries back to front.
	slices.Reverse(entries)
	node.Data.Meta = entries
}

func (c *Context) extractContext(node *api.Node, v source.Expr, span source.Span) {
	if node.ID != c.Digraph.RootID {
		c.errorf(api.ErrStatePropertyInvalid, span, "context is only supported on the machine root")
		return
	}
	if v.Kind() == source.KindFunction {
		c.Digraph.Data.Context = &api.ContextData{Function: v.Text()}
		return
	}
	val, ok := decodeValue(v)
	if !ok {
		c.errorf(api.ErrStatePropertyInvalid, v.Span(), "context must be plain data or an inline function")
		return
	}
	c.Digraph.Data.Context = &api.ContextData{Value: val}
}

func (c *Context) extractStates(node *api.Node, v source.Expr, loc Locator) {
	if v.Kind() != source.KindObject {
		c.errorf(api.ErrStatePropertyInvalid, v.Span(), "states must be an object literal")
		return
	}
	parent := c.Tree[node.ID]
	statesLoc := loc.Child(Key("states"))
	c.scanProperties(v.Properties(), func(sp source.Property) {
		if !c.readablePair(sp) {
			return
		}
		if sp.Value.Kind() != source.KindObject {
			c.errorf(api.ErrStateUnhandled, sp.Value.Span(), "state %q is not an object literal", sp.Key)
			return
		}
		childLoc := statesLoc.Child(Key(sp.Key))
		child := c.newNode(parent, sp.Key, childLoc)
		c.extractState(child, sp.Value, childLoc)
	})
}

func (c *Context) extractOn(node *api.Node, v source.Expr, loc Locator) {
	if v.Kind() != source.KindObject {
		c.errorf(api.ErrStatePropertyInvalid, v.Span(), "on must be an object literal")
		return
	}
	onLoc := loc.Child(Key("on"))
	c.scanProperties(v.Properties(), func(ep source.Property) {
		if !c.readablePair(ep) {
			return
		}
		event := api.EventTypeData{Kind: api.EventNamed, EventType: ep.Key}
		if ep.Key == "*" {
			event = api.EventTypeData{Kind: api.EventWildcard}
		}
		c.extractEdgeGroup(node, event, ep.Value, onLoc.Child(Key(ep.Key)))
	})
}
