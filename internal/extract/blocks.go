package extract

import (
	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// extractBlocks reads an action list value (single element or array) and
// returns the block ids in declaration order.
func (c *Context) extractBlocks(kind api.BlockKind, parentID string, v source.Expr) []string {
	var ids []string
	add := func(el source.Expr) {
		if id, ok := c.extractBlock(kind, parentID, el); ok {
			ids = append(ids, id)
		}
	}
	if v.Kind() == source.KindArray {
		for _, el := range v.Elements() {
			add(el)
		}
	} else {
		add(v)
	}
	return ids
}

// extractBlock classifies one implementation expression: a bare string
// names a declared implementation, an object with a string type does the
// same (carrying params), and anything else is captured as an inline
// implementation with a synthetic sourceId.
func (c *Context) extractBlock(kind api.BlockKind, parentID string, el source.Expr) (string, bool) {
	switch el.Kind() {
	case source.KindSpread:
		c.errorf(api.ErrActionUnhandled, el.Span(), "cannot capture a spread element as an implementation")
		return "", false
	case source.KindString:
		name, _ := el.AsString()
		return c.addBlock(kind, parentID, name, nil, ""), true
	case source.KindObject:
		props := c.collectPairs(el)
		if typeProp, ok := props["type"]; ok {
			if name, ok := typeProp.Value.AsString(); ok {
				var params map[string]any
				if pp, ok := props["params"]; ok {
					if v, ok := decodeValue(pp.Value); ok {
						params, _ = v.(map[string]any)
					} else {
						c.errorf(api.ErrPropertyUnhandled, pp.Value.Span(), "params for %q is not plain data", name)
					}
				}
				id := c.addBlock(kind, parentID, name, nil, "")
				c.Digraph.Blocks[id].Action.Params = params
				return id, true
			}
		}
		return c.addInlineBlock(kind, parentID, el), true
	default:
		return c.addInlineBlock(kind, parentID, el), true
	}
}

// extractInvoke reads a state's invoke value: one invocation object (or a
// bare source string) or an array of them. Each invocation yields an actor
// block; onDone/onError transition groups inside it yield edges keyed by
// the invocation id.
func (c *Context) extractInvoke(node *api.Node, v source.Expr, loc Locator) {
	if v.Kind() == source.KindArray {
		for i, el := range v.Elements() {
			c.extractInvocation(node, el, loc.Child(Index(i)))
		}
		return
	}
	c.extractInvocation(node, v, loc)
}

func (c *Context) extractInvocation(node *api.Node, el source.Expr, loc Locator) {
	switch el.Kind() {
	case source.KindSpread:
		c.errorf(api.ErrActionUnhandled, el.Span(), "cannot capture a spread element as an invocation")
		return
	case source.KindString:
		name, _ := el.AsString()
		id := c.addBlock(api.BlockActor, node.ID, name, nil, "")
		node.Data.Invoke = append(node.Data.Invoke, id)
		return
	case source.KindObject:
	default:
		id := c.addInlineBlock(api.BlockActor, node.ID, el)
		node.Data.Invoke = append(node.Data.Invoke, id)
		return
	}

	props := c.collectPairs(el)
	srcProp, hasSrc := props["src"]
	if !hasSrc {
		// No src at all: the whole object is an opaque inline actor.
		id := c.addInlineBlock(api.BlockActor, node.ID, el)
		node.Data.Invoke = append(node.Data.Invoke, id)
		return
	}

	invokeID := ""
	if idProp, ok := props["id"]; ok {
		if s, ok := idProp.Value.AsString(); ok {
			invokeID = s
		} else {
			c.errorf(api.ErrStatePropertyInvalid, idProp.Value.Span(), "invoke id must be a string literal")
		}
	}

	var blockID string
	if name, ok := srcProp.Value.AsString(); ok {
		blockID = c.addBlock(api.BlockActor, node.ID, name, nil, invokeID)
	} else {
		blockID = c.addInlineBlock(api.BlockActor, node.ID, srcProp.Value)
		c.Digraph.Blocks[blockID].Actor.ID = invokeID
	}
	node.Data.Invoke = append(node.Data.Invoke, blockID)

	invocationID := invokeID
	if invocationID == "" {
		invocationID = c.Digraph.Blocks[blockID].SourceID
	}
	if p, ok := props["onDone"]; ok {
		event := api.EventTypeData{Kind: api.EventInvocationDone, InvocationID: invocationID}
		c.extractEdgeGroup(node, event, p.Value, loc.Child(Key("onDone")))
	}
	if p, ok := props["onError"]; ok {
		event := api.EventTypeData{Kind: api.EventInvocationError, InvocationID: invocationID}
		c.extractEdgeGroup(node, event, p.Value, loc.Child(Key("onError")))
	}
}

// collectPairs gathers an object's readable pairs under first-declaration
// precedence. Shape errors are recorded as a side effect.
func (c *Context) collectPairs(obj source.Expr) map[string]source.Property {
	props := map[string]source.Property{}
	c.scanProperties(obj.Properties(), func(p source.Property) {
		if !c.readablePair(p) {
			return
		}
		props[p.Key] = p
	})
	return props
}

func (c *Context) addBlock(kind api.BlockKind, parentID, sourceID string, inlineExpr source.Expr, actorID string) string {
	id := c.nextBlockID()
	b := &api.Block{ID: id, Kind: kind, ParentID: parentID, SourceID: sourceID}
	switch kind {
	case api.BlockAction:
		b.Action = &api.ActionProps{Type: sourceID}
	case api.BlockActor:
		b.Actor = &api.ActorProps{Src: sourceID, ID: actorID}
	}
	c.Digraph.Blocks[id] = b

	impls := c.implementationsFor(kind)
	if _, ok := impls[sourceID]; !ok {
		impl := &api.Implementation{Kind: kind, SourceID: sourceID}
		if inlineExpr != nil {
			impl.Inline = true
			impl.Text = inlineExpr.Text()
		}
		impls[sourceID] = impl
	}
	return id
}

func (c *Context) addInlineBlock(kind api.BlockKind, parentID string, el source.Expr) string {
	return c.addBlock(kind, parentID, c.nextInlineID(), el, "")
}

func (c *Context) implementationsFor(kind api.BlockKind) map[string]*api.Implementation {
	switch kind {
	case api.BlockActor:
		return c.Digraph.Implementations.Actors
	case api.BlockGuard:
		return c.Digraph.Implementations.Guards
	default:
		return c.Digraph.Implementations.Actions
	}
}
