package arbor

import (
	"fmt"
	"time"
)

// globalDebug enables the checks below. It is set from Stage.SetDebugMode
// and Config.Debug (no atomic: tree operations are single-threaded).
var globalDebug bool

// FrameStats holds the counters and timings of one frame. Timings are only
// measured in debug mode.
type FrameStats struct {
	Frame uint64

	// Visited counts nodes the update walk entered, Recalculated those whose
	// derived state was recomputed.
	Visited      int
	Recalculated int
	// Loads counts texture loads applied at frame start, Uploads sources
	// copied into the atlas.
	Loads   int
	Uploads int
	// Textures counts texturized subtrees drawn through their texture.
	Textures int

	Quads     int
	QuadOps   int
	FilterOps int
	Exec      ExecStats

	UpdateTime  time.Duration
	RenderTime  time.Duration
	ExecuteTime time.Duration
}

// debugLog reports the stats of a finished frame.
func (s *Stage) debugLog(st *FrameStats) {
	if !s.debug {
		return
	}
	logger.Debug("arbor: frame",
		"frame", st.Frame,
		"update", st.UpdateTime,
		"render", st.RenderTime,
		"execute", st.ExecuteTime,
		"total", st.UpdateTime+st.RenderTime+st.ExecuteTime)
	logger.Debug("arbor: frame counters",
		"frame", st.Frame,
		"visited", st.Visited,
		"recalculated", st.Recalculated,
		"quads", st.Quads,
		"ops", st.QuadOps,
		"filters", st.FilterOps,
		"draw_calls", st.Exec.DrawCalls,
		"state_changes", st.Exec.StateChanges)
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Only called in debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("arbor: %s on disposed node %q (ID was %d)", op, n.Name, n.ID))
	}
}

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 32

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		logger.Warn("arbor: tree depth exceeds threshold",
			"depth", depth, "threshold", debugMaxTreeDepth, "node", nodePath(n))
	}
}

// debugCheckChildCount warns if a node has more than 1000 children.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		logger.Warn("arbor: child count exceeds threshold",
			"children", len(n.children), "threshold", debugMaxChildCount, "node", nodePath(n))
	}
}
