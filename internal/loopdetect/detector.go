// Package loopdetect flags runaway model behavior: a bounded sliding window
// of event fingerprints, signalling when the same text chunk or
// (tool, args) pair recurs past its threshold.
package loopdetect

import "github.com/haasonsaas/agentcore/pkg/protocol"

const (
	DefaultWindow        = 30
	DefaultTextThreshold = 5
	DefaultToolThreshold = 3
)

type fingerprintKind int

const (
	kindText fingerprintKind = iota
	kindTool
)

type entry struct {
	kind fingerprintKind
	fp   string
}

// Detector observes events from a single turn (single producer) and
// signals when a fingerprint recurs past its threshold within the trailing
// window.
type Detector struct {
	window        int
	textThreshold int
	toolThreshold int

	ring  []entry
	counts map[string]int
}

func New() *Detector {
	return &Detector{
		window:        DefaultWindow,
		textThreshold: DefaultTextThreshold,
		toolThreshold: DefaultToolThreshold,
		counts:        make(map[string]int),
	}
}

// WithThresholds overrides the defaults; useful for tests exercising the
// boundary exactly at K.
func (d *Detector) WithThresholds(window, textK, toolK int) *Detector {
	d.window, d.textThreshold, d.toolThreshold = window, textK, toolK
	return d
}

// Reset clears the window. Invoked at the start of each new top-level
// prompt and on session reset.
func (d *Detector) Reset() {
	d.ring = d.ring[:0]
	d.counts = make(map[string]int)
}

// ObserveText folds a text-chunk event into the window and reports whether
// a loop is now detected.
func (d *Detector) ObserveText(text string) bool {
	if text == "" {
		return false
	}
	return d.observe(kindText, hashText(text), d.textThreshold)
}

// ObserveToolCall folds a tool-call event into the window and reports
// whether a loop is now detected.
func (d *Detector) ObserveToolCall(toolName string, args map[string]any) bool {
	fp := toolName + ":" + hashArgs(args)
	return d.observe(kindTool, fp, d.toolThreshold)
}

func (d *Detector) observe(kind fingerprintKind, fp string, threshold int) bool {
	key := fingerprintKey(kind, fp)
	d.ring = append(d.ring, entry{kind: kind, fp: fp})
	d.counts[key]++

	if len(d.ring) > d.window {
		evicted := d.ring[0]
		d.ring = d.ring[1:]
		evictedKey := fingerprintKey(evicted.kind, evicted.fp)
		d.counts[evictedKey]--
		if d.counts[evictedKey] <= 0 {
			delete(d.counts, evictedKey)
		}
	}

	return d.counts[key] >= threshold
}

func fingerprintKey(kind fingerprintKind, fp string) string {
	if kind == kindTool {
		return "tool:" + fp
	}
	return "text:" + fp
}

// FeedEvent is a convenience wrapper for AgentLoop's event forwarding loop:
// it extracts the fingerprint-relevant payload from a protocol.Event and
// folds it in, ignoring event kinds the detector doesn't track.
func (d *Detector) FeedEvent(e protocol.Event) bool {
	switch e.Kind {
	case protocol.EventContent:
		return d.ObserveText(e.Text)
	case protocol.EventToolCallRequest:
		return d.ObserveToolCall(e.Name, e.Args)
	default:
		return false
	}
}
