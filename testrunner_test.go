package grove

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shooterScript = `
object "Application" {
	init = function(self) frames = 0 end,
	states = { main = function(self, dt)
		frames = frames + 1
		if Engine.Input:pressed("fire1") then self:spawn("Bullet") end
	end },
}
object "Bullet" {
	states = {
		main = function(self, dt) self:set_state("flying") end,
		flying = function(self, dt) end,
	},
}
`

func TestLoadTestScript(t *testing.T) {
	r, err := LoadTestScript([]byte(`{"steps": [
		{"action": "tap", "input": "fire1"},
		{"action": "wait", "frames": 2},
		{"action": "expect", "object": "Bullet", "state": "flying"}
	]}`))
	require.NoError(t, err)
	assert.Len(t, r.steps, 3)
	assert.False(t, r.Done())
}

func TestLoadTestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"invalid json", `{"steps": [`, "parse test script"},
		{"no steps", `{"steps": []}`, "no steps"},
		{"unknown action", `{"steps": [{"action": "jump"}]}`, `unknown action "jump"`},
		{"input without action name", `{"steps": [{"action": "tap"}]}`, "tap needs an input"},
		{"expect without object", `{"steps": [{"action": "expect"}]}`, "expect needs an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTestScript([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunHeadlessScenario(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	r, err := LoadTestScript([]byte(`{"steps": [
		{"action": "tap", "input": "fire1"},
		{"action": "expect", "object": "Bullet", "state": "flying"},
		{"action": "expect", "object": "Ghost", "absent": true}
	]}`))
	require.NoError(t, err)

	frames, err := RunHeadless(rt, r, 100)
	require.NoError(t, err)
	assert.True(t, r.Done())
	assert.Equal(t, 4, frames)
	assert.Equal(t, "4", global(rt.VM(), "frames"))
}

func TestRunHeadlessWait(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	r, err := LoadTestScript([]byte(`{"steps": [
		{"action": "wait", "frames": 3},
		{"action": "expect", "object": "Application"}
	]}`))
	require.NoError(t, err)

	frames, err := RunHeadless(rt, r, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, frames)
}

func TestRunHeadlessFailedExpectation(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	r, err := LoadTestScript([]byte(`{"steps": [{"action": "expect", "object": "Bullet"}]}`))
	require.NoError(t, err)

	frames, err := RunHeadless(rt, r, 100)
	assert.ErrorIs(t, err, ErrExpectation)
	assert.Zero(t, frames)
}

func TestRunHeadlessWrongState(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	r, err := LoadTestScript([]byte(`{"steps": [{"action": "expect", "object": "Application", "state": "paused"}]}`))
	require.NoError(t, err)

	_, err = RunHeadless(rt, r, 100)
	require.ErrorIs(t, err, ErrExpectation)
	assert.Contains(t, err.Error(), `want "paused"`)
}

func TestRunHeadlessReload(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	vm := rt.VM()
	r, err := LoadTestScript([]byte(`{"steps": [
		{"action": "tap", "input": "fire1"},
		{"action": "expect", "object": "Bullet"},
		{"action": "reload"},
		{"action": "expect", "object": "Bullet", "absent": true}
	]}`))
	require.NoError(t, err)

	_, err = RunHeadless(rt, r, 100)
	require.NoError(t, err)
	assert.Same(t, vm, rt.VM())
}

func TestRunHeadlessQuitStep(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	r, err := LoadTestScript([]byte(`{"steps": [
		{"action": "quit"},
		{"action": "expect", "object": "Nope"}
	]}`))
	require.NoError(t, err)

	frames, err := RunHeadless(rt, r, 100)
	require.NoError(t, err, "steps after quit are skipped")
	assert.Equal(t, 1, frames)
}

func TestRunHeadlessScriptQuit(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": `
object "Application" {
	states = { main = function(self, dt) Engine:quit() end },
}
`}, nil)
	frames, err := RunHeadless(rt, nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, frames)
}

func TestRunHeadlessMaxFrames(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": shooterScript}, nil)
	frames, err := RunHeadless(rt, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, frames)
	assert.InDelta(t, 10.0/60, rt.VM().Elapsed(), 1e-9)
}
