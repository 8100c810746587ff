package arbor

import (
	"encoding/json"
	"fmt"
)

type scriptAction uint8

const (
	actionWait scriptAction = iota
	actionScreenshot
	actionInvalidate
	actionStats
)

var scriptActions = map[string]scriptAction{
	"wait":       actionWait,
	"screenshot": actionScreenshot,
	"invalidate": actionInvalidate,
	"stats":      actionStats,
}

// scriptStep is one entry of a test script as written in JSON.
type scriptStep struct {
	Action string `json:"action"`
	Label  string `json:"label,omitempty"`
	Frames int    `json:"frames,omitempty"`
	Node   string `json:"node,omitempty"`

	action scriptAction
}

// TestRunner plays a scripted sequence of waits, screenshots and texture
// invalidations across frames, for automated visual testing. Attach it to a
// stage via SetTestRunner. Supported actions:
//
//	{"action": "wait", "frames": 10}
//	{"action": "screenshot", "label": "after-blur"}
//	{"action": "invalidate", "node": "root/panel"}
//	{"action": "stats"}
//
// Every action takes one frame; a wait of n frames takes n.
type TestRunner struct {
	pending []scriptStep
	idle    int
}

// LoadTestScript parses a JSON test script.
func LoadTestScript(data []byte) (*TestRunner, error) {
	var script struct {
		Steps []scriptStep `json:"steps"`
	}
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("arbor: parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("arbor: parse test script: no steps")
	}
	for i := range script.Steps {
		st := &script.Steps[i]
		a, ok := scriptActions[st.Action]
		if !ok {
			return nil, fmt.Errorf("arbor: parse test script: step %d: unknown action %q", i, st.Action)
		}
		st.action = a
	}
	return &TestRunner{pending: script.Steps}, nil
}

// SetTestRunner attaches a runner. It advances at the start of every Step.
func (s *Stage) SetTestRunner(r *TestRunner) {
	s.runner = r
}

// Done reports whether all steps of the script ran.
func (r *TestRunner) Done() bool {
	return len(r.pending) == 0 && r.idle == 0
}

func (r *TestRunner) step(s *Stage) {
	if r.idle > 0 {
		r.idle--
		return
	}
	if len(r.pending) == 0 {
		return
	}
	st := r.pending[0]
	r.pending = r.pending[1:]

	switch st.action {
	case actionWait:
		r.idle = max(st.Frames-1, 0)
	case actionScreenshot:
		s.Screenshot(st.Label)
	case actionInvalidate:
		n := s.FindNode(st.Node)
		if n == nil || n.texturizer == nil {
			logger.Warn("arbor: test script: no texturized node", "node", st.Node)
			return
		}
		n.texturizer.Invalidate()
	case actionStats:
		stats := s.stats
		logger.Info("arbor: test script stats",
			"frame", stats.Frame,
			"quads", stats.Quads,
			"ops", stats.QuadOps,
			"draw_calls", stats.Exec.DrawCalls)
	}
}
