package reel

import "testing"

func TestLoadScriptRejectsEmpty(t *testing.T) {
	if _, err := LoadScript([]byte(`{"steps": []}`)); err == nil {
		t.Error("empty script must be rejected")
	}
	if _, err := LoadScript([]byte(`{`)); err == nil {
		t.Error("malformed JSON must be rejected")
	}
}

func TestScriptRunnerSequencesTransport(t *testing.T) {
	player, _ := testPlayer(t)
	runner, err := LoadScript([]byte(`{"steps": [
		{"action": "set_frame", "frame": 30},
		{"action": "wait", "ticks": 2},
		{"action": "step", "count": 5},
		{"action": "step", "count": -1},
		{"action": "to_start"}
	]}`))
	if err != nil {
		t.Fatal(err)
	}

	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 30 {
		t.Fatalf("after set_frame: frame = %d, want 30", got)
	}

	runner.Step(player) // wait tick 1
	runner.Step(player) // wait tick 2
	if got := player.Clock().CurrentFrame(); got != 30 {
		t.Fatalf("wait must not move the playhead, frame = %d", got)
	}

	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 35 {
		t.Fatalf("after step 5: frame = %d, want 35", got)
	}
	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 34 {
		t.Fatalf("after step -1: frame = %d, want 34", got)
	}
	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 0 {
		t.Fatalf("after to_start: frame = %d, want 0", got)
	}
	if !runner.Done() {
		t.Error("runner must report done after the last step")
	}
}

func TestScriptRunnerEdgeJumps(t *testing.T) {
	player, comp := testPlayer(t)
	// The single text layer spans [0, 100]; add a second layer to create
	// interior edges at 20 and 40.
	extra := NewText("e", "", 10)
	if err := player.Project().AddNode(extra); err != nil {
		t.Fatal(err)
	}
	if _, err := player.Project().AddLayer(comp.ID, extra.ID, 20, 40, 1); err != nil {
		t.Fatal(err)
	}
	player.refreshWorkArea()

	runner, err := LoadScript([]byte(`{"steps": [
		{"action": "set_frame", "frame": 30},
		{"action": "next_edge"},
		{"action": "prev_edge"},
		{"action": "prev_edge"}
	]}`))
	if err != nil {
		t.Fatal(err)
	}

	runner.Step(player) // frame 30
	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 40 {
		t.Fatalf("next_edge from 30 = %d, want 40", got)
	}
	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 20 {
		t.Fatalf("prev_edge from 40 = %d, want 20", got)
	}
	runner.Step(player)
	if got := player.Clock().CurrentFrame(); got != 0 {
		t.Fatalf("prev_edge from 20 = %d, want 0", got)
	}
}
