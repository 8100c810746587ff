package arbor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceDisposed is reported when a load finishes for a texture
	// source that was disposed in the meantime.
	ErrSourceDisposed = errors.New("arbor: texture source disposed")
	// ErrStaleLoad is reported when a load result belongs to a superseded
	// request.
	ErrStaleLoad = errors.New("arbor: stale texture load")
	// ErrNoImage is returned by a loader that produced neither an image nor
	// an error.
	ErrNoImage = errors.New("arbor: loader returned no image")
)

// nodePath returns the slash separated names from the root down to n, used in
// panic messages so a bad call can be located in the tree.
func nodePath(n *Node) string {
	if n == nil {
		return "<nil>"
	}
	var parts []string
	for p := n; p != nil && !p.synthetic; p = p.parent {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("#%d", p.ID)
		}
		parts = append(parts, name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// fail panics with an "arbor: op: msg (at path)" message. Programming errors
// such as cycles or attaching the stage root elsewhere go through here.
func fail(op string, n *Node, format string, args ...any) {
	panic(fmt.Sprintf("arbor: %s: %s (at %s)", op, fmt.Sprintf(format, args...), nodePath(n)))
}
