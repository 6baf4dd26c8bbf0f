package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
	"github.com/stategraph/stategraph/internal/writeback"
)

func load(t *testing.T, p *Project, path, src string, version int) source.File {
	t.Helper()
	f, err := source.ParseFile(path, []byte(src), version)
	require.NoError(t, err)
	p.UpdateFile(f)
	return f
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestProject_CachesUntilFileChanges(t *testing.T) {
	p := New()
	load(t, p, "m.ts", `createMachine({ initial: "a", states: { a: {} } });`, 1)

	first, err := p.Machine("m.ts", 0)
	require.NoError(t, err)
	require.NotNil(t, first.Digraph)

	again, err := p.Machine("m.ts", 0)
	require.NoError(t, err)
	assert.Same(t, first.Digraph, again.Digraph, "unchanged file reuses the cached extraction")

	load(t, p, "m.ts", `createMachine({ initial: "b", states: { b: {} } });`, 2)
	fresh, err := p.Machine("m.ts", 0)
	require.NoError(t, err)
	assert.NotSame(t, first.Digraph, fresh.Digraph)
	assert.Equal(t, "b", fresh.Digraph.Nodes[fresh.Digraph.RootID].Data.Initial)
}

func TestProject_UpdateProgram(t *testing.T) {
	p := New()
	a, err := source.ParseFile("a.ts", []byte(`createMachine({ id: "one" });`), 1)
	require.NoError(t, err)
	b, err := source.ParseFile("b.ts", []byte(`createMachine({ id: "two" });`), 1)
	require.NoError(t, err)
	p.UpdateProgram([]source.File{a, b})

	assert.Equal(t, []string{"a.ts", "b.ts"}, p.Paths())
	res, err := p.Machine("b.ts", 0)
	require.NoError(t, err)
	require.NotNil(t, res.Digraph)
	assert.Equal(t, "two", res.Digraph.Nodes[res.Digraph.RootID].Data.Key)
}

func TestProject_ReextractionIsStable(t *testing.T) {
	src := `createMachine({
  id: "app",
  initial: "a",
  states: {
    a: { entry: "boot", on: { GO: { target: "b", actions: [() => {}] } } },
    b: { invoke: { src: "svc", onDone: "a" } },
  },
});`
	p := New()
	load(t, p, "m.ts", src, 1)
	one, err := p.Machine("m.ts", 0)
	require.NoError(t, err)

	load(t, p, "m.ts", src, 2)
	two, err := p.Machine("m.ts", 0)
	require.NoError(t, err)

	require.Equal(t, one.Digraph, two.Digraph, "same source extracts to an identical digraph, ids included")
	assert.Equal(t, one.Errors, two.Errors)
}

func TestProject_NotLoadedAndNotFound(t *testing.T) {
	p := New()

	_, err := p.Machines("ghost.ts")
	assert.ErrorIs(t, err, ErrFileNotLoaded)
	_, err = p.FindMachines("ghost.ts")
	assert.ErrorIs(t, err, ErrFileNotLoaded)
	_, err = p.ApplyPatches("ghost.ts", 0, nil)
	assert.ErrorIs(t, err, ErrFileNotLoaded)

	load(t, p, "m.ts", `createMachine({});`, 1)
	_, err = p.Machine("m.ts", 3)
	assert.ErrorIs(t, err, ErrMachineNotFound)
	_, err = p.Machine("m.ts", -1)
	assert.ErrorIs(t, err, ErrMachineNotFound)
}

func TestProject_FindMachines(t *testing.T) {
	p := New()
	load(t, p, "m.ts", `const a = createMachine({ id: "one" });
const b = createMachine({ id: "two" });`, 1)

	spans, err := p.FindMachines("m.ts")
	require.NoError(t, err)
	require.Len(t, spans, 2)

	assert.Equal(t, 0, spans[0].Index)
	assert.Equal(t, uint32(0), spans[0].Line)
	assert.Equal(t, uint32(10), spans[0].Column)
	assert.Equal(t, 1, spans[1].Index)
	assert.Equal(t, uint32(1), spans[1].Line)
	assert.Less(t, spans[0].End, spans[1].Start)
}

func TestProject_MachinesPerCall(t *testing.T) {
	p := New()
	load(t, p, "m.ts", `createMachine({ id: "one" }); createMachine();`, 1)

	results, err := p.Machines("m.ts")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NotNil(t, results[0].Digraph)
	assert.Equal(t, "one", results[0].Digraph.Nodes[results[0].Digraph.RootID].Data.Key)

	// The second call has no configuration: nil digraph, soft error.
	assert.Nil(t, results[1].Digraph)
	require.Len(t, results[1].Errors, 1)
	assert.Equal(t, api.ErrStateUnhandled, results[1].Errors[0].Kind)
}

func TestProject_WithFactory(t *testing.T) {
	p := New(WithFactory("defineMachine"))
	load(t, p, "m.ts", `defineMachine({ id: "custom" }); createMachine({ id: "ignored" });`, 1)

	results, err := p.Machines("m.ts")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "custom", results[0].Digraph.Nodes[results[0].Digraph.RootID].Data.Key)
}

func TestProject_RemoveFile(t *testing.T) {
	p := New()
	load(t, p, "m.ts", `createMachine({});`, 1)
	require.Equal(t, []string{"m.ts"}, p.Paths())

	p.RemoveFile("m.ts")
	assert.Empty(t, p.Paths())
	_, ok := p.File("m.ts")
	assert.False(t, ok)
	_, err := p.Machines("m.ts")
	assert.ErrorIs(t, err, ErrFileNotLoaded)
}

// Patches flow end to end: compute edits, splice, reload, re-extract.
func TestProject_ApplyPatchesRoundTrip(t *testing.T) {
	src := `createMachine({ states: { a: {}, b: {} } });`
	p := New()
	load(t, p, "m.ts", src, 1)

	res, err := p.Machine("m.ts", 0)
	require.NoError(t, err)
	a := res.Digraph.NodeByPath("a")
	b := res.Digraph.NodeByPath("b")
	require.NotNil(t, a)
	require.NotNil(t, b)

	edge := api.Edge{
		ID:      "edge-new",
		Source:  a.ID,
		Targets: []string{b.ID},
		Data: api.EdgeData{
			Event:    api.EventTypeData{Kind: api.EventNamed, EventType: "NEXT"},
			Internal: true,
		},
	}
	patches := []api.Patch{{Op: api.OpAdd, Path: []string{"edges", edge.ID}, Value: mustJSON(t, edge)}}

	edits, err := p.ApplyPatches("m.ts", 0, patches)
	require.NoError(t, err)
	require.Len(t, edits, 1)

	out, err := writeback.Spliced([]byte(src), edits)
	require.NoError(t, err)
	require.NoError(t, writeback.Validate(out, "m.ts"))

	load(t, p, "m.ts", string(out), 2)
	res, err = p.Machine("m.ts", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	a = res.Digraph.NodeByPath("a")
	b = res.Digraph.NodeByPath("b")
	edges := res.Digraph.EdgesFrom(a.ID)
	require.Len(t, edges, 1)
	assert.Equal(t, "NEXT", edges[0].Data.Event.EventType)
	assert.Equal(t, []string{b.ID}, edges[0].Targets)
}
