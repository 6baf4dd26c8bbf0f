package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/extract"
	"github.com/stategraph/stategraph/internal/resolve"
	"github.com/stategraph/stategraph/internal/source"
	"github.com/stategraph/stategraph/internal/writeback"
)

// fixture extracts and resolves the single machine in src and bundles it
// for the engine.
func fixture(t *testing.T, src string) Machine {
	t.Helper()
	f, err := source.ParseFile("machine.ts", []byte(src), 1)
	require.NoError(t, err)
	calls := f.MachineCalls("createMachine")
	require.Len(t, calls, 1)
	c := extract.Machine(calls[0])
	require.NotNil(t, c.Digraph)
	resolve.Targets(c)
	require.Empty(t, c.Errors)

	declared := map[string]string{}
	for id, nodeID := range c.IDMap {
		declared[nodeID] = id
	}
	return Machine{
		File:         f,
		Config:       calls[0].Config,
		Digraph:      c.Digraph,
		NodeLocators: c.NodeLocators,
		EdgeLocators: c.EdgeLocators,
		DeclaredIDs:  declared,
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// applied runs the batch and splices the edits into the fixture source.
func applied(t *testing.T, m Machine, patches ...api.Patch) string {
	t.Helper()
	edits, err := Apply(m, patches)
	require.NoError(t, err)
	out, err := writeback.Spliced(m.File.Bytes(), edits)
	require.NoError(t, err)
	return string(out)
}

func namedEdge(source, target, eventType string) api.Edge {
	e := api.Edge{
		ID:      "edge-new",
		Source:  source,
		Targets: []string{},
		Data: api.EdgeData{
			Event:    api.EventTypeData{Kind: api.EventNamed, EventType: eventType},
			Internal: true,
		},
	}
	if target != "" {
		e.Targets = []string{target}
	}
	return e
}

func addEdgePatch(t *testing.T, e api.Edge) api.Patch {
	t.Helper()
	return api.Patch{Op: api.OpAdd, Path: []string{"edges", e.ID}, Value: raw(t, e)}
}

func TestApply_EmptyBatch(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	edits, err := Apply(m, nil)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestApply_AddEdgeCreatesOn(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {}, b: {} } });`)
	a := m.Digraph.NodeByPath("a")
	b := m.Digraph.NodeByPath("b")

	edits, err := Apply(m, []api.Patch{addEdgePatch(t, namedEdge(a.ID, b.ID, "NEXT"))})
	require.NoError(t, err)
	require.Len(t, edits, 1)

	out, err := writeback.Spliced(m.File.Bytes(), edits)
	require.NoError(t, err)
	assert.Equal(t,
		`createMachine({ states: { a: { on: { NEXT: "b" } }, b: {} } });`,
		string(out))
}

func TestApply_AddEdgeWrapsSingleTransition(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: { on: { NEXT: "b" } }, b: {}, c: {} } });`)
	a := m.Digraph.NodeByPath("a")
	c := m.Digraph.NodeByPath("c")

	got := applied(t, m, addEdgePatch(t, namedEdge(a.ID, c.ID, "NEXT")))
	assert.Equal(t,
		`createMachine({ states: { a: { on: { NEXT: ["b", "c"] } }, b: {}, c: {} } });`,
		got)
}

func TestApply_AddEdgeAppendsToArray(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: { on: { NEXT: ["b"] } }, b: {}, c: {} } });`)
	a := m.Digraph.NodeByPath("a")
	c := m.Digraph.NodeByPath("c")

	got := applied(t, m, addEdgePatch(t, namedEdge(a.ID, c.ID, "NEXT")))
	assert.Equal(t,
		`createMachine({ states: { a: { on: { NEXT: ["b", "c"] } }, b: {}, c: {} } });`,
		got)
}

func TestApply_AddEdgeObjectForm(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {}, b: {} } });`)
	a := m.Digraph.NodeByPath("a")
	b := m.Digraph.NodeByPath("b")

	action := api.Block{ID: "block-n", Kind: api.BlockAction, ParentID: "edge-new", SourceID: "notify"}
	guard := api.Block{ID: "block-g", Kind: api.BlockGuard, ParentID: "edge-new", SourceID: "isReady"}
	edge := namedEdge(a.ID, b.ID, "SAVE")
	edge.Data.Actions = []string{action.ID}
	edge.Data.Guard = guard.ID
	edge.Data.Internal = false
	edge.Data.Description = "persists the draft"

	got := applied(t, m,
		api.Patch{Op: api.OpAdd, Path: []string{"blocks", action.ID}, Value: raw(t, action)},
		api.Patch{Op: api.OpAdd, Path: []string{"blocks", guard.ID}, Value: raw(t, guard)},
		addEdgePatch(t, edge),
	)
	assert.Equal(t,
		`createMachine({ states: { a: { on: { SAVE: { target: "b", actions: ["notify"], guard: "isReady", reenter: true, description: "persists the draft" } } }, b: {} } });`,
		got)
}

func TestApply_AddEdgeTargetless(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	a := m.Digraph.NodeByPath("a")

	got := applied(t, m, addEdgePatch(t, namedEdge(a.ID, "", "PING")))
	assert.Equal(t,
		`createMachine({ states: { a: { on: { PING: undefined } } } });`,
		got)
}

func TestApply_AddEdgeAlways(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    a: {
      on: { X: "b" },
    },
    b: {},
  },
});`)
	a := m.Digraph.NodeByPath("a")
	b := m.Digraph.NodeByPath("b")

	edge := namedEdge(a.ID, b.ID, "")
	edge.Data.Event = api.EventTypeData{Kind: api.EventAlways}

	got := applied(t, m, addEdgePatch(t, edge))
	assert.Equal(t, `createMachine({
  states: {
    a: {
      on: { X: "b" },
      always: "b",
    },
    b: {},
  },
});`, got)
}

func TestApply_AddEdgeInvocationDone(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    load: {
      invoke: {
        src: "fetch",
        id: "f",
      },
    },
    done: {},
  },
});`)
	load := m.Digraph.NodeByPath("load")
	done := m.Digraph.NodeByPath("done")

	edge := namedEdge(load.ID, done.ID, "")
	edge.Data.Event = api.EventTypeData{Kind: api.EventInvocationDone, InvocationID: "f"}

	got := applied(t, m, addEdgePatch(t, edge))
	assert.Equal(t, `createMachine({
  states: {
    load: {
      invoke: {
        src: "fetch",
        id: "f",
        onDone: "done",
      },
    },
    done: {},
  },
});`, got)
}

func TestApply_ReplaceInitial(t *testing.T) {
	m := fixture(t, `createMachine({
  initial: "a",
  states: { a: {}, b: {} },
});`)
	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", m.Digraph.RootID, "data", "initial"},
		Value: raw(t, "b"),
	})
	assert.Equal(t, `createMachine({
  initial: "b",
  states: { a: {}, b: {} },
});`, got)
}

func TestApply_ReplaceTypeWithDefaultRemovesProperty(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    p: {
      type: "parallel",
      states: { x: {} },
    },
  },
});`)
	p := m.Digraph.NodeByPath("p")
	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", p.ID, "data", "type"},
		Value: raw(t, "normal"),
	})
	assert.Equal(t, `createMachine({
  states: {
    p: {
      states: { x: {} },
    },
  },
});`, got)
}

func TestApply_ReplaceTypeInsertsCanonically(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    f: {
      initial: "x",
      states: { x: {} },
    },
  },
});`)
	f := m.Digraph.NodeByPath("f")
	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", f.ID, "data", "type"},
		Value: raw(t, "final"),
	})
	assert.Equal(t, `createMachine({
  states: {
    f: {
      type: "final",
      initial: "x",
      states: { x: {} },
    },
  },
});`, got)
}

func TestApply_ReplaceHistoryDefault(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    h: {
      type: "history",
      history: "deep",
    },
  },
});`)
	h := m.Digraph.NodeByPath("h")
	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", h.ID, "data", "history"},
		Value: raw(t, "shallow"),
	})
	assert.Equal(t, `createMachine({
  states: {
    h: {
      type: "history",
    },
  },
});`, got)
}

func TestApply_RenameKey(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {}, b: {} } });`)
	a := m.Digraph.NodeByPath("a")

	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", a.ID, "data", "key"},
		Value: raw(t, "alpha"),
	})
	assert.Equal(t, `createMachine({ states: { alpha: {}, b: {} } });`, got)
}

func TestApply_RenameKeyQuotesNonIdentifier(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	a := m.Digraph.NodeByPath("a")

	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", a.ID, "data", "key"},
		Value: raw(t, "my state"),
	})
	assert.Equal(t, `createMachine({ states: { "my state": {} } });`, got)
}

func TestApply_RenameRootFails(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	_, err := Apply(m, []api.Patch{{
		Op:    api.OpReplace,
		Path:  []string{"nodes", m.Digraph.RootID, "data", "key"},
		Value: raw(t, "other"),
	}})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)
}

func TestApply_MultilineDescriptionUsesTemplate(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	a := m.Digraph.NodeByPath("a")

	got := applied(t, m, api.Patch{
		Op:    api.OpReplace,
		Path:  []string{"nodes", a.ID, "data", "description"},
		Value: raw(t, "line one\nline two"),
	})
	assert.Equal(t, "createMachine({ states: { a: { description: `line one\nline two` } } });", got)
}

func TestApply_AddNode(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    a: {},
  },
});`)
	node := api.Node{
		ID:       "node-new",
		ParentID: m.Digraph.RootID,
		Data:     api.NodeData{Key: "b", Type: api.NodeTypeNormal},
	}
	got := applied(t, m, api.Patch{Op: api.OpAdd, Path: []string{"nodes", node.ID}, Value: raw(t, node)})
	assert.Equal(t, `createMachine({
  states: {
    a: {},
    b: {},
  },
});`, got)
}

func TestApply_AddNodeCreatesStates(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	a := m.Digraph.NodeByPath("a")
	node := api.Node{
		ID:       "node-new",
		ParentID: a.ID,
		Data:     api.NodeData{Key: "inner", Type: api.NodeTypeNormal},
	}
	got := applied(t, m, api.Patch{Op: api.OpAdd, Path: []string{"nodes", node.ID}, Value: raw(t, node)})
	assert.Equal(t, `createMachine({ states: { a: { states: { inner: {} } } } });`, got)
}

// A node added earlier in the batch is a valid edge target later in it: the
// descriptor is synthesized against the patched digraph while the text edit
// lands in the original source.
func TestApply_AddNodeThenEdgeToIt(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    a: {},
  },
});`)
	a := m.Digraph.NodeByPath("a")
	node := api.Node{
		ID:       "node-new",
		ParentID: m.Digraph.RootID,
		Data:     api.NodeData{Key: "c", Type: api.NodeTypeNormal},
	}
	got := applied(t, m,
		api.Patch{Op: api.OpAdd, Path: []string{"nodes", node.ID}, Value: raw(t, node)},
		addEdgePatch(t, namedEdge(a.ID, node.ID, "GO")),
	)
	assert.Equal(t, `createMachine({
  states: {
    a: { on: { GO: "c" } },
    c: {},
  },
});`, got)
}

func TestApply_RemoveNode(t *testing.T) {
	m := fixture(t, `createMachine({
  initial: "a",
  states: {
    a: {},
    b: {},
  },
});`)
	b := m.Digraph.NodeByPath("b")
	got := applied(t, m, api.Patch{Op: api.OpRemove, Path: []string{"nodes", b.ID}})
	assert.Equal(t, `createMachine({
  initial: "a",
  states: {
    a: {},
  },
});`, got)
}

func TestApply_RemoveRootFails(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	_, err := Apply(m, []api.Patch{{Op: api.OpRemove, Path: []string{"nodes", m.Digraph.RootID}}})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)
}

func TestApply_RemoveEdges(t *testing.T) {
	m := fixture(t, `createMachine({
  states: {
    a: {
      on: {
        GO: ["b", "c"],
        STAY: { actions: "log" },
      },
    },
    b: {},
    c: {},
  },
});`)
	a := m.Digraph.NodeByPath("a")
	c := m.Digraph.NodeByPath("c")

	var toC, stay *api.Edge
	for _, e := range m.Digraph.EdgesFrom(a.ID) {
		switch {
		case len(e.Targets) == 1 && e.Targets[0] == c.ID:
			toC = e
		case e.Data.Event.EventType == "STAY":
			stay = e
		}
	}
	require.NotNil(t, toC)
	require.NotNil(t, stay)

	got := applied(t, m,
		api.Patch{Op: api.OpRemove, Path: []string{"edges", toC.ID}},
		api.Patch{Op: api.OpRemove, Path: []string{"edges", stay.ID}},
	)
	assert.Equal(t, `createMachine({
  states: {
    a: {
      on: {
        GO: ["b"],
      },
    },
    b: {},
    c: {},
  },
});`, got)
}

func TestApply_RemoveSoleTransition(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: { on: { GO: "b" } }, b: {} } });`)
	a := m.Digraph.NodeByPath("a")
	edges := m.Digraph.EdgesFrom(a.ID)
	require.Len(t, edges, 1)

	got := applied(t, m, api.Patch{Op: api.OpRemove, Path: []string{"edges", edges[0].ID}})
	assert.Equal(t, `createMachine({ states: { a: { on: {  } }, b: {} } });`, got)
}

func TestApply_QuoteStyleFollowsImports(t *testing.T) {
	m := fixture(t, `import { createMachine } from 'xstate';

createMachine({ states: { a: {}, b: {} } });`)
	a := m.Digraph.NodeByPath("a")
	b := m.Digraph.NodeByPath("b")

	got := applied(t, m, addEdgePatch(t, namedEdge(a.ID, b.ID, "GO")))
	assert.Equal(t, `import { createMachine } from 'xstate';

createMachine({ states: { a: { on: { GO: 'b' } }, b: {} } });`, got)
}

func TestApply_StructuralOnlyPaths(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	edits, err := Apply(m, []api.Patch{
		{Op: api.OpAdd, Path: []string{"data", "context"}, Value: raw(t, map[string]any{"value": map[string]any{"n": 1}})},
		{Op: api.OpRemove, Path: []string{"implementations", "actions", "gone"}},
	})
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestApply_Errors(t *testing.T) {
	m := fixture(t, `createMachine({ states: { a: {} } });`)
	a := m.Digraph.NodeByPath("a")

	_, err := Apply(m, []api.Patch{addEdgePatch(t, namedEdge("node-404", a.ID, "GO"))})
	assert.ErrorIs(t, err, ErrNoSite)

	init := namedEdge(a.ID, a.ID, "")
	init.Data.Event = api.EventTypeData{Kind: api.EventInit}
	_, err = Apply(m, []api.Patch{addEdgePatch(t, init)})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)

	_, err = Apply(m, []api.Patch{{Op: api.OpReplace, Path: []string{"frob"}, Value: raw(t, 1)}})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)
	assert.ErrorContains(t, err, "patch 0")

	_, err = Apply(m, []api.Patch{{
		Op:    api.OpReplace,
		Path:  []string{"nodes", a.ID, "data", "frobnicate"},
		Value: raw(t, "x"),
	}})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)

	_, err = Apply(m, []api.Patch{{Op: api.OpAdd, Path: nil, Value: raw(t, 1)}})
	assert.ErrorIs(t, err, ErrUnsupportedPatch)
}
