// Package project tracks parsed files and the machines extracted from
// them across edits. Extraction results are cached per machine and
// revalidated lazily: a cached entry is reused only while its file version
// matches, so reads never observe a stale parse and unchanged files never
// re-extract.
package project

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/extract"
	"github.com/stategraph/stategraph/internal/patch"
	"github.com/stategraph/stategraph/internal/resolve"
	"github.com/stategraph/stategraph/internal/source"
)

// DefaultFactory is the call name machines are searched by when no
// override is configured.
const DefaultFactory = "createMachine"

var (
	ErrFileNotLoaded   = errors.New("file not loaded")
	ErrMachineNotFound = errors.New("machine not found")
)

// Result pairs an extracted digraph with the soft errors extraction
// accumulated for it.
type Result struct {
	Digraph *api.Digraph
	Errors  []api.ExtractError
}

type machineKey struct {
	path  string
	index int
}

type machineState struct {
	version int
	config  source.Expr
	digraph *api.Digraph
	errors  []api.ExtractError
	nodeLoc map[string]extract.Locator
	edgeLoc map[string]extract.Locator
	// ids maps node ids back to declared id strings.
	ids map[string]string
}

type Project struct {
	mu      sync.Mutex
	factory string
	files   map[string]source.File
	states  map[machineKey]*machineState
}

type Option func(*Project)

// WithFactory overrides the factory call name machines are searched by.
func WithFactory(name string) Option {
	return func(p *Project) { p.factory = name }
}

func New(opts ...Option) *Project {
	p := &Project{
		factory: DefaultFactory,
		files:   make(map[string]source.File),
		states:  make(map[machineKey]*machineState),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// UpdateFile registers or replaces the parse of one file. Cached machine
// state for the file is kept and revalidated against the new version on
// the next access.
func (p *Project) UpdateFile(f source.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[f.Path()] = f
}

// UpdateProgram replaces the parses of several files at once.
func (p *Project) UpdateProgram(files []source.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range files {
		p.files[f.Path()] = f
	}
}

// RemoveFile drops a file and every machine extracted from it.
func (p *Project) RemoveFile(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
	for k := range p.states {
		if k.path == path {
			delete(p.states, k)
		}
	}
}

// File returns the current parse of path.
func (p *Project) File(path string) (source.File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	return f, ok
}

// Paths lists every loaded file in sorted order.
func (p *Project) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.files))
	for path := range p.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// FindMachines returns the span of every factory call in path, in file
// order, without extracting anything.
func (p *Project) FindMachines(path string) ([]api.MachineSpan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotLoaded)
	}
	calls := f.MachineCalls(p.factory)
	spans := make([]api.MachineSpan, len(calls))
	for i, call := range calls {
		line, col := f.Position(call.Span.Start)
		spans[i] = api.MachineSpan{
			Index:  i,
			Start:  call.Span.Start,
			End:    call.Span.End,
			Line:   line,
			Column: col,
		}
	}
	return spans, nil
}

// Machines extracts every machine in path, reusing cached state where the
// file has not changed since the last extraction.
func (p *Project) Machines(path string) ([]Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotLoaded)
	}
	calls := f.MachineCalls(p.factory)
	results := make([]Result, len(calls))
	for i := range calls {
		st, err := p.stateLocked(f, calls, i)
		if err != nil {
			return nil, err
		}
		results[i] = Result{Digraph: st.digraph, Errors: st.errors}
	}
	return results, nil
}

// Machine returns the extraction result for the index-th machine of path.
func (p *Project) Machine(path string, index int) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", path, ErrFileNotLoaded)
	}
	st, err := p.stateLocked(f, f.MachineCalls(p.factory), index)
	if err != nil {
		return Result{}, err
	}
	return Result{Digraph: st.digraph, Errors: st.errors}, nil
}

// ApplyPatches computes the text edits realizing patches against the
// index-th machine of path. The file itself stays untouched: the caller
// applies the returned edits and feeds the new parse back via UpdateFile,
// after which the next access re-extracts.
func (p *Project) ApplyPatches(path string, index int, patches []api.Patch) ([]api.TextEdit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotLoaded)
	}
	st, err := p.stateLocked(f, f.MachineCalls(p.factory), index)
	if err != nil {
		return nil, err
	}
	return patch.Apply(patch.Machine{
		File:         f,
		Config:       st.config,
		Digraph:      st.digraph,
		NodeLocators: st.nodeLoc,
		EdgeLocators: st.edgeLoc,
		DeclaredIDs:  st.ids,
	}, patches)
}

// stateLocked returns the cached state for one machine, re-extracting when
// the cache predates the file's current version.
func (p *Project) stateLocked(f source.File, calls []source.MachineCall, index int) (*machineState, error) {
	key := machineKey{path: f.Path(), index: index}
	if st, ok := p.states[key]; ok && st.version == f.Version() {
		return st, nil
	}
	if index < 0 || index >= len(calls) {
		return nil, fmt.Errorf("machine %d in %s: %w", index, f.Path(), ErrMachineNotFound)
	}
	ctx := extract.Machine(calls[index])
	resolve.Targets(ctx)
	ids := make(map[string]string, len(ctx.IDMap))
	for declared, nodeID := range ctx.IDMap {
		ids[nodeID] = declared
	}
	st := &machineState{
		version: f.Version(),
		config:  calls[index].Config,
		digraph: ctx.Digraph,
		errors:  ctx.Errors,
		nodeLoc: ctx.NodeLocators,
		edgeLoc: ctx.EdgeLocators,
		ids:     ids,
	}
	p.states[key] = st
	return st, nil
}
