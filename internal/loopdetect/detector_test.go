package loopdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextRepetitionDetectedAtThreshold(t *testing.T) {
	d := New()
	var detected bool
	for i := 0; i < DefaultTextThreshold; i++ {
		detected = d.ObserveText("same paragraph")
	}
	assert.True(t, detected)
}

func TestTextRepetitionNotDetectedBelowThreshold(t *testing.T) {
	d := New()
	var detected bool
	for i := 0; i < DefaultTextThreshold-1; i++ {
		detected = d.ObserveText("same paragraph")
	}
	assert.False(t, detected)
}

func TestToolCallRepetitionUsesLowerThreshold(t *testing.T) {
	d := New()
	var detected bool
	for i := 0; i < DefaultToolThreshold; i++ {
		detected = d.ObserveToolCall("read_file", map[string]any{"path": "/a.txt"})
	}
	assert.True(t, detected)
}

func TestDifferentArgsDoNotAccumulate(t *testing.T) {
	d := New()
	detected := false
	for i := 0; i < DefaultToolThreshold+2; i++ {
		if d.ObserveToolCall("read_file", map[string]any{"path": i}) {
			detected = true
		}
	}
	assert.False(t, detected)
}

func TestResetClearsWindow(t *testing.T) {
	d := New()
	for i := 0; i < DefaultTextThreshold; i++ {
		d.ObserveText("x")
	}
	d.Reset()
	assert.False(t, d.ObserveText("x"))
}

func TestWindowEvictsOldEntries(t *testing.T) {
	d := New().WithThresholds(2, 2, 2)
	assert.False(t, d.ObserveText("x"))
	assert.False(t, d.ObserveText("y"))
	assert.True(t, d.ObserveText("y")) // window now holds [y,y]: "x" evicted, threshold met
}
