package highlight

import "testing"

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// 1.e4 d5: the e4 pawn can advance to e5 or capture on d5.
const captureFEN = "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2"

func TestComputePawnDestinations(t *testing.T) {
	m := Compute("e2", startFEN, false)
	if len(m) != 3 {
		t.Fatalf("expected 3 entries, got %d (%v)", len(m), m)
	}
	if m["e2"] != SelectedOrigin {
		t.Fatalf("origin not tagged: %v", m)
	}
	if m["e3"] != QuietDestination || m["e4"] != QuietDestination {
		t.Fatalf("expected quiet destinations e3/e4: %v", m)
	}
}

func TestComputeCaptureTagged(t *testing.T) {
	m := Compute("e4", captureFEN, false)
	if m["e4"] != SelectedOrigin {
		t.Fatalf("origin not tagged: %v", m)
	}
	if m["d5"] != CaptureDestination {
		t.Fatalf("occupied destination d5 should be a capture: %v", m)
	}
	if m["e5"] != QuietDestination {
		t.Fatalf("empty destination e5 should be quiet: %v", m)
	}
}

func TestComputeGameOverAlwaysEmpty(t *testing.T) {
	if m := Compute("e2", startFEN, true); len(m) != 0 {
		t.Fatalf("finished game must show no highlights: %v", m)
	}
}

func TestComputeEmptyInputs(t *testing.T) {
	if m := Compute("", startFEN, false); len(m) != 0 {
		t.Fatalf("no selection must yield empty map: %v", m)
	}
	if m := Compute("e2", "", false); len(m) != 0 {
		t.Fatalf("empty position must yield empty map: %v", m)
	}
	if m := Compute("e2", "definitely not a fen", false); len(m) != 0 {
		t.Fatalf("unparseable position must yield empty map: %v", m)
	}
	if m := Compute("z9", startFEN, false); len(m) != 0 {
		t.Fatalf("invalid square must yield empty map: %v", m)
	}
}

func TestComputeNoMovesOnlyOrigin(t *testing.T) {
	// Empty square: no piece, no destinations.
	m := Compute("e5", startFEN, false)
	if len(m) != 1 || m["e5"] != SelectedOrigin {
		t.Fatalf("empty square should carry at most the origin tag: %v", m)
	}

	// Blocked rook: a piece with zero legal moves.
	m = Compute("a1", startFEN, false)
	if len(m) != 1 || m["a1"] != SelectedOrigin {
		t.Fatalf("blocked piece should carry at most the origin tag: %v", m)
	}

	// Opponent piece while white is to move: no destinations either.
	m = Compute("e7", startFEN, false)
	if len(m) != 1 || m["e7"] != SelectedOrigin {
		t.Fatalf("off-turn piece should carry at most the origin tag: %v", m)
	}
}

func TestComputeRecomputesFromScratch(t *testing.T) {
	// Same selection against two positions must not leak state.
	first := Compute("e4", captureFEN, false)
	second := Compute("e4", startFEN, false)
	if len(second) != 1 || second["e4"] != SelectedOrigin {
		t.Fatalf("stale destinations leaked into new position: %v", second)
	}
	if len(first) != 3 {
		t.Fatalf("first map unexpectedly mutated: %v", first)
	}
}
