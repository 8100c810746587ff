package arbor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPSWidget(t *testing.T) {
	s := newTestStage(200, 200)
	n := NewFPSWidget(s)
	assert.Equal(t, math.MaxInt32, n.ZIndex())
	require.NotNil(t, n.Texture())
	s.Root().AddChild(n)
	require.Len(t, s.listeners, 1)

	s.Step(0.6)
	w, h := n.Size()
	assert.Equal(t, [2]float64{140, 48}, [2]float64{w, h})

	src := n.Texture().Source()
	n.Dispose()
	s.Step(1.0 / 60)
	assert.Empty(t, s.listeners, "the widget removes its listener once disposed")
	assert.Equal(t, SourceDisposed, src.State())
}
