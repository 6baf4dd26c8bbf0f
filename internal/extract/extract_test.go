package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// machine extracts the single factory call in src.
func machine(t *testing.T, src string) *Context {
	t.Helper()
	f, err := source.ParseFile("machine.ts", []byte(src), 1)
	require.NoError(t, err)
	calls := f.MachineCalls("createMachine")
	require.Len(t, calls, 1)
	return Machine(calls[0])
}

func errorKinds(c *Context) []api.ErrorKind {
	kinds := make([]api.ErrorKind, len(c.Errors))
	for i, e := range c.Errors {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestMachine_BasicTree(t *testing.T) {
	c := machine(t, `createMachine({
  id: "light",
  initial: "green",
  states: {
    green: { on: { TIMER: "yellow" } },
    yellow: {},
  },
});`)
	require.NotNil(t, c.Digraph)
	assert.Empty(t, c.Errors)

	root := c.Digraph.Nodes[c.Digraph.RootID]
	require.NotNil(t, root)
	assert.Equal(t, "light", root.Data.Key)
	assert.Equal(t, "green", root.Data.Initial)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, api.NodeTypeNormal, root.Data.Type)

	green := c.Digraph.NodeByPath("green")
	require.NotNil(t, green)
	assert.Equal(t, root.ID, green.ParentID)
	require.NotNil(t, c.Digraph.NodeByPath("yellow"))
	assert.Len(t, c.Digraph.Nodes, 3)

	assert.Equal(t, root.ID, c.IDMap["light"])

	edges := c.Digraph.EdgesFrom(green.ID)
	require.Len(t, edges, 1)
	assert.Equal(t, api.EventNamed, edges[0].Data.Event.Kind)
	assert.Equal(t, "TIMER", edges[0].Data.Event.EventType)
	assert.True(t, edges[0].Data.Internal)

	// Target resolution is a separate pass; extraction leaves a pending
	// raw string and an empty target list.
	assert.Empty(t, edges[0].Targets)
	require.Len(t, c.Pending, 1)
	assert.Equal(t, "yellow", c.Pending[0].Raw)
	assert.Equal(t, green.ID, c.Pending[0].Source)
}

func TestMachine_Deterministic(t *testing.T) {
	src := `createMachine({
  initial: "a",
  states: {
    a: { entry: ["one", () => {}], on: { GO: { target: "b", actions: "two" } } },
    b: { invoke: { src: "svc", onDone: "a" } },
  },
});`
	a := machine(t, src)
	b := machine(t, src)
	require.Equal(t, a.Digraph, b.Digraph)
	assert.Equal(t, a.Pending, b.Pending)
}

func TestMachine_NoConfiguration(t *testing.T) {
	c := machine(t, `createMachine();`)
	assert.Nil(t, c.Digraph)
	assert.Equal(t, []api.ErrorKind{api.ErrStateUnhandled}, errorKinds(c))

	c = machine(t, `createMachine(42);`)
	assert.Nil(t, c.Digraph)
	assert.Equal(t, []api.ErrorKind{api.ErrStateUnhandled}, errorKinds(c))
}

func TestMachine_RootFallbackKey(t *testing.T) {
	c := machine(t, `createMachine({ initial: "a", states: { a: {} } });`)
	root := c.Digraph.Nodes[c.Digraph.RootID]
	assert.Equal(t, RootFallbackID, root.Data.Key)
	assert.Equal(t, root.ID, c.IDMap[RootFallbackID])
}

func TestMachine_DuplicatePropertyFirstWins(t *testing.T) {
	c := machine(t, `createMachine({
  initial: "a",
  initial: "b",
  states: { a: {}, b: {} },
});`)
	root := c.Digraph.Nodes[c.Digraph.RootID]
	assert.Equal(t, "a", root.Data.Initial)
	assert.Empty(t, c.Errors, "duplicate keys are not an error")
}

func TestMachine_TypeAndHistory(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    hist: { type: "history", history: "deep" },
    boolHist: { type: "history", history: true },
    shallow: { type: "history", history: false },
    par: { type: "parallel" },
    fin: { type: "final" },
    atom: { type: "atomic" },
  },
});`)
	assert.Empty(t, c.Errors)
	dg := c.Digraph
	assert.Equal(t, api.NodeTypeHistory, dg.NodeByPath("hist").Data.Type)
	assert.Equal(t, api.HistoryDeep, dg.NodeByPath("hist").Data.History)
	assert.Equal(t, api.HistoryDeep, dg.NodeByPath("boolHist").Data.History)
	assert.Equal(t, api.HistoryShallow, dg.NodeByPath("shallow").Data.History)
	assert.Equal(t, api.NodeTypeParallel, dg.NodeByPath("par").Data.Type)
	assert.Equal(t, api.NodeTypeFinal, dg.NodeByPath("fin").Data.Type)
	assert.Equal(t, api.NodeTypeNormal, dg.NodeByPath("atom").Data.Type)
}

func TestMachine_InvalidTypeAndHistory(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    a: { type: "weird" },
    b: { history: "sideways" },
    c: { type: 42 },
  },
});`)
	kinds := errorKinds(c)
	assert.Contains(t, kinds, api.ErrStateTypeInvalid)
	assert.Contains(t, kinds, api.ErrStateHistoryInvalid)
	assert.Len(t, kinds, 3)
}

func TestMachine_TagsAndDescription(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    one: { tags: "alpha", description: "the first" },
    many: { tags: ["a", "b"] },
  },
});`)
	assert.Empty(t, c.Errors)
	assert.Equal(t, []string{"alpha"}, c.Digraph.NodeByPath("one").Data.Tags)
	assert.Equal(t, "the first", c.Digraph.NodeByPath("one").Data.Description)
	assert.Equal(t, []string{"a", "b"}, c.Digraph.NodeByPath("many").Data.Tags)
}

func TestMachine_MetaKeepsDeclarationOrder(t *testing.T) {
	c := machine(t, `createMachine({
  meta: { zebra: 1, apple: "two", nested: { deep: true } },
});`)
	assert.Empty(t, c.Errors)
	meta := c.Digraph.Nodes[c.Digraph.RootID].Data.Meta
	require.Len(t, meta, 3)
	assert.Equal(t, "zebra", meta[0].Key)
	assert.Equal(t, float64(1), meta[0].Value)
	assert.Equal(t, "apple", meta[1].Key)
	assert.Equal(t, "nested", meta[2].Key)
	assert.Equal(t, map[string]any{"deep": true}, meta[2].Value)
}

func TestMachine_Context(t *testing.T) {
	c := machine(t, `createMachine({ context: { count: 0 } });`)
	require.NotNil(t, c.Digraph.Data.Context)
	assert.Equal(t, map[string]any{"count": float64(0)}, c.Digraph.Data.Context.Value)

	c = machine(t, `createMachine({ context: () => ({ count: 0 }) });`)
	require.NotNil(t, c.Digraph.Data.Context)
	assert.Equal(t, "() => ({ count: 0 })", c.Digraph.Data.Context.Function)

	c = machine(t, `createMachine({ states: { a: { context: {} } } });`)
	assert.Equal(t, []api.ErrorKind{api.ErrStatePropertyInvalid}, errorKinds(c))
	assert.Nil(t, c.Digraph.Data.Context)
}

func TestMachine_InlineEntryAction(t *testing.T) {
	c := machine(t, `createMachine({ entry: [() => {}] });`)
	require.Empty(t, c.Errors)

	root := c.Digraph.Nodes[c.Digraph.RootID]
	require.Len(t, root.Data.Entry, 1)
	block := c.Digraph.Blocks[root.Data.Entry[0]]
	require.NotNil(t, block)
	assert.Equal(t, api.BlockAction, block.Kind)
	assert.Equal(t, root.ID, block.ParentID)
	assert.True(t, strings.HasPrefix(block.SourceID, "inline:"))

	impl := c.Digraph.Implementations.Actions[block.SourceID]
	require.NotNil(t, impl)
	assert.True(t, impl.Inline)
	assert.Equal(t, "() => {}", impl.Text)
}

func TestMachine_NamedActionsDeduplicate(t *testing.T) {
	c := machine(t, `createMachine({
  entry: "track",
  exit: [{ type: "track", params: { page: "home" } }],
});`)
	require.Empty(t, c.Errors)

	root := c.Digraph.Nodes[c.Digraph.RootID]
	require.Len(t, root.Data.Entry, 1)
	require.Len(t, root.Data.Exit, 1)
	assert.NotEqual(t, root.Data.Entry[0], root.Data.Exit[0], "each reference is its own block")

	exitBlock := c.Digraph.Blocks[root.Data.Exit[0]]
	assert.Equal(t, "track", exitBlock.SourceID)
	require.NotNil(t, exitBlock.Action)
	assert.Equal(t, map[string]any{"page": "home"}, exitBlock.Action.Params)

	// One implementation entry regardless of reference count.
	require.Len(t, c.Digraph.Implementations.Actions, 1)
	impl := c.Digraph.Implementations.Actions["track"]
	require.NotNil(t, impl)
	assert.False(t, impl.Inline)
}

func TestMachine_InvokeWithDoneAndError(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    loading: {
      invoke: { src: "fetchUser", id: "fetcher", onDone: "done", onError: { target: "failed" } },
    },
    done: {},
    failed: {},
  },
});`)
	require.Empty(t, c.Errors)

	loading := c.Digraph.NodeByPath("loading")
	require.Len(t, loading.Data.Invoke, 1)
	block := c.Digraph.Blocks[loading.Data.Invoke[0]]
	assert.Equal(t, api.BlockActor, block.Kind)
	require.NotNil(t, block.Actor)
	assert.Equal(t, "fetchUser", block.Actor.Src)
	assert.Equal(t, "fetcher", block.Actor.ID)
	require.NotNil(t, c.Digraph.Implementations.Actors["fetchUser"])

	edges := c.Digraph.EdgesFrom(loading.ID)
	require.Len(t, edges, 2)
	byKind := map[api.EventKind]*api.Edge{}
	for _, e := range edges {
		byKind[e.Data.Event.Kind] = e
	}
	done := byKind[api.EventInvocationDone]
	require.NotNil(t, done)
	assert.Equal(t, "fetcher", done.Data.Event.InvocationID)
	fail := byKind[api.EventInvocationError]
	require.NotNil(t, fail)
	assert.Equal(t, "fetcher", fail.Data.Event.InvocationID)

	require.Len(t, c.Pending, 2)
	raws := []string{c.Pending[0].Raw, c.Pending[1].Raw}
	assert.ElementsMatch(t, []string{"done", "failed"}, raws)
}

func TestMachine_InvokeWithoutIDUsesSource(t *testing.T) {
	c := machine(t, `createMachine({
  invoke: [{ src: "poll", onDone: "idle" }, "logger"],
  states: { idle: {} },
});`)
	require.Empty(t, c.Errors)

	root := c.Digraph.Nodes[c.Digraph.RootID]
	require.Len(t, root.Data.Invoke, 2)

	var doneEdge *api.Edge
	for _, e := range c.Digraph.EdgesFrom(root.ID) {
		if e.Data.Event.Kind == api.EventInvocationDone {
			doneEdge = e
		}
	}
	require.NotNil(t, doneEdge)
	assert.Equal(t, "poll", doneEdge.Data.Event.InvocationID)
	require.NotNil(t, c.Digraph.Implementations.Actors["logger"])
}

func TestMachine_WildcardAlwaysAndDone(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    work: {
      on: { "*": "idle" },
      always: [{ target: "idle" }],
      onDone: "idle",
    },
    idle: {},
  },
});`)
	require.Empty(t, c.Errors)

	work := c.Digraph.NodeByPath("work")
	edges := c.Digraph.EdgesFrom(work.ID)
	require.Len(t, edges, 3)
	kinds := map[api.EventKind]int{}
	for _, e := range edges {
		kinds[e.Data.Event.Kind]++
		assert.Empty(t, e.Data.Event.EventType)
	}
	assert.Equal(t, map[api.EventKind]int{
		api.EventWildcard:  1,
		api.EventAlways:    1,
		api.EventStateDone: 1,
	}, kinds)
}

func TestMachine_TransitionObject(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    a: {
      on: {
        MULTI: { target: ["b", "c"], actions: ["log"], description: "fan out" },
        SAVE: { actions: "save" },
        GUARDED: { target: "b", guard: "isReady", reenter: true },
      },
    },
    b: {},
    c: {},
  },
});`)
	require.Empty(t, c.Errors, "guard and reenter are skipped silently")

	a := c.Digraph.NodeByPath("a")
	byEvent := map[string]*api.Edge{}
	for _, e := range c.Digraph.EdgesFrom(a.ID) {
		byEvent[e.Data.Event.EventType] = e
	}
	require.Len(t, byEvent, 3)

	multi := byEvent["MULTI"]
	assert.Equal(t, "fan out", multi.Data.Description)
	require.Len(t, multi.Data.Actions, 1)
	assert.Equal(t, "log", c.Digraph.Blocks[multi.Data.Actions[0]].SourceID)

	save := byEvent["SAVE"]
	assert.Empty(t, save.Targets)
	require.Len(t, save.Data.Actions, 1)

	var multiRaws []string
	for _, p := range c.Pending {
		if p.EdgeID == multi.ID {
			multiRaws = append(multiRaws, p.Raw)
		}
	}
	assert.Equal(t, []string{"b", "c"}, multiRaws, "array targets keep declaration order")
}

func TestMachine_TargetlessTransitionValues(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    a: { on: { NOPE: null, GONE: undefined } },
  },
});`)
	require.Empty(t, c.Errors)
	a := c.Digraph.NodeByPath("a")
	edges := c.Digraph.EdgesFrom(a.ID)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Empty(t, e.Targets)
	}
	assert.Empty(t, c.Pending)
}

func TestMachine_UnhandledShapes(t *testing.T) {
	c := machine(t, `createMachine({
  frobnicate: 1,
  ...base,
  states: {
    a: { on: { GO: { target: "a", cond: "legacy" } } },
    b: { on: { GO: 42 } },
  },
});`)
	kinds := errorKinds(c)
	assert.Contains(t, kinds, api.ErrStatePropertyUnhandled)
	assert.Contains(t, kinds, api.ErrPropertyUnhandled)
	assert.Contains(t, kinds, api.ErrTransitionPropertyUnhandled)

	// The degraded machine still extracts everything readable.
	assert.NotNil(t, c.Digraph.NodeByPath("a"))
	assert.NotNil(t, c.Digraph.NodeByPath("b"))
	a := c.Digraph.NodeByPath("a")
	assert.Len(t, c.Digraph.EdgesFrom(a.ID), 1)
}

func TestMachine_Locators(t *testing.T) {
	c := machine(t, `createMachine({
  states: {
    a: {
      on: { NEXT: ["b", "c"] },
      invoke: { src: "svc", onDone: "b" },
    },
    b: {},
    c: {},
  },
});`)
	require.Empty(t, c.Errors)

	a := c.Digraph.NodeByPath("a")
	assert.Equal(t, "states.a", c.NodeLocators[a.ID].String())
	assert.Equal(t, "", c.NodeLocators[c.Digraph.RootID].String())

	var locs []string
	for _, e := range c.Digraph.EdgesFrom(a.ID) {
		locs = append(locs, c.EdgeLocators[e.ID].String())
	}
	assert.ElementsMatch(t, []string{
		"states.a.on.NEXT[0]",
		"states.a.on.NEXT[1]",
		"states.a.invoke.onDone",
	}, locs)
}

func TestLocator_ChildDoesNotAlias(t *testing.T) {
	base := Locator{Key("states")}.Child(Key("a"))
	one := base.Child(Key("on"))
	two := base.Child(Key("invoke"))
	assert.Equal(t, "states.a.on", one.String())
	assert.Equal(t, "states.a.invoke", two.String())
}
