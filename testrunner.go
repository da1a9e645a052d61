package grove

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrExpectation is returned when an expect step does not hold.
var ErrExpectation = errors.New("expectation failed")

// testStep represents a single action in a test script.
type testStep struct {
	Action string `json:"action"`
	Input  string `json:"input,omitempty"`
	Object string `json:"object,omitempty"`
	State  string `json:"state,omitempty"`
	Absent bool   `json:"absent,omitempty"`
	Frames int    `json:"frames,omitempty"`
}

// testScript is the top-level JSON structure for a test script.
type testScript struct {
	Steps []testStep `json:"steps"`
}

var testActions = map[string]bool{
	"wait": true, "tick": true, "press": true, "release": true, "tap": true, "hold": true,
	"reload": true, "expect": true, "quit": true,
}

// TestRunner sequences injected input, reloads, and tree expectations
// across frames for headless testing of scripts:
//
//	{"steps": [
//	    {"action": "tap", "input": "fire1"},
//	    {"action": "wait", "frames": 3},
//	    {"action": "expect", "object": "Bullet"},
//	    {"action": "expect", "object": "Player", "state": "dead"},
//	    {"action": "reload"}
//	]}
type TestRunner struct {
	steps     []testStep
	cursor    int
	waitCount int
	done      bool
}

// LoadTestScript parses a JSON test script.
func LoadTestScript(jsonData []byte) (*TestRunner, error) {
	var script testScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	for i, st := range script.Steps {
		if !testActions[st.Action] {
			return nil, fmt.Errorf("parse test script: step %d: unknown action %q", i, st.Action)
		}
		switch st.Action {
		case "press", "release", "tap", "hold":
			if st.Input == "" {
				return nil, fmt.Errorf("parse test script: step %d: %s needs an input", i, st.Action)
			}
		case "expect":
			if st.Object == "" {
				return nil, fmt.Errorf("parse test script: step %d: expect needs an object", i)
			}
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// Done reports whether all steps in the test script have been executed.
func (r *TestRunner) Done() bool {
	return r.done
}

// step advances the runner by one frame. It runs before the runtime's
// Update for that frame.
func (r *TestRunner) step(rt *Runtime) error {
	if r.done {
		return nil
	}
	// Wait for pending injections to drain before advancing.
	if rt.input.Pending() > 0 {
		return nil
	}
	if r.waitCount > 0 {
		r.waitCount--
		return nil
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return nil
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "press":
		rt.input.InjectPress(st.Input)
	case "release":
		rt.input.InjectRelease(st.Input)
	case "tap":
		rt.input.InjectTap(st.Input)
	case "hold":
		rt.input.InjectHold(st.Input, st.Frames)
	case "wait", "tick":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "reload":
		if err := rt.Reload(); err != nil {
			return err
		}
	case "expect":
		if err := r.expect(rt.vm, st); err != nil {
			return fmt.Errorf("step %d: %w", r.cursor-1, err)
		}
	case "quit":
		r.cursor = len(r.steps)
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && rt.input.Pending() == 0 {
		r.done = true
	}
	return nil
}

func (r *TestRunner) expect(vm *VM, st testStep) error {
	h := vm.Find(st.Object)
	if st.Absent {
		if h != NullHandle {
			return fmt.Errorf("%w: object %q exists", ErrExpectation, st.Object)
		}
		return nil
	}
	if h == NullHandle {
		return fmt.Errorf("%w: no object %q", ErrExpectation, st.Object)
	}
	if st.State != "" {
		state, err := vm.State(h)
		if err != nil {
			return err
		}
		if state != st.State {
			return fmt.Errorf("%w: object %q is in state %q, want %q", ErrExpectation, st.Object, state, st.State)
		}
	}
	return nil
}

// RunHeadless ticks rt at its configured rate without a window until the
// runner finishes, a script asks to quit, or maxFrames frames have run.
// A nil runner runs for maxFrames. It returns the number of frames run.
func RunHeadless(rt *Runtime, runner *TestRunner, maxFrames int) (int, error) {
	dt := 1 / float64(rt.cfg.TPS)
	frames := 0
	for ; frames < maxFrames; frames++ {
		if runner != nil {
			if runner.Done() {
				break
			}
			if err := runner.step(rt); err != nil {
				return frames, err
			}
		}
		if rt.QuitRequested() {
			break
		}
		if err := rt.Update(dt); err != nil {
			return frames, err
		}
	}
	rt.log.Info("headless run finished",
		zap.Int("frames", frames),
		zap.Bool("runner_done", runner != nil && runner.Done()))
	return frames, nil
}
