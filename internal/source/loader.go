package source

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Loader reads and parses files from a billy filesystem, tracking a
// monotonic version per path so reparses are distinguishable. The CLI hands
// it an osfs root; tests hand it a memfs.
type Loader struct {
	fs       billy.Filesystem
	versions map[string]int
}

func NewLoader(fs billy.Filesystem) *Loader {
	return &Loader{fs: fs, versions: map[string]int{}}
}

// Load reads path from the filesystem and parses it. Each call bumps the
// path's version.
func (l *Loader) Load(path string) (*TSFile, error) {
	data, err := util.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	l.versions[path]++
	return ParseFile(path, data, l.versions[path])
}
