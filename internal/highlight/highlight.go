package highlight

import (
	"strings"

	"github.com/corentings/chess/v2"
)

// Intent tags a square with the affordance the UI should render for it.
type Intent string

const (
	SelectedOrigin     Intent = "selected"
	QuietDestination   Intent = "quiet"
	CaptureDestination Intent = "capture"
)

// Map associates square names ("e4") with intents. It is rebuilt wholesale
// on every input change; callers must not patch it incrementally.
type Map map[string]Intent

// Compute returns the highlight map for the piece on selected in the given
// position. A finished game, an empty selection, or an unusable FEN yields
// an empty map: no legal-move affordance may ever be shown for them.
func Compute(selected string, fen string, gameOver bool) Map {
	if gameOver {
		return Map{}
	}
	selected = strings.ToLower(strings.TrimSpace(selected))
	if selected == "" || strings.TrimSpace(fen) == "" {
		return Map{}
	}
	origin, ok := parseSquare(selected)
	if !ok {
		return Map{}
	}

	// Reload the full position every time; the position feed may mutate its
	// source in place between calls.
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return Map{}
	}
	game := chess.NewGame(fenOpt)
	board := game.Position().Board()

	m := Map{origin.String(): SelectedOrigin}
	for _, mv := range game.ValidMoves() {
		if mv.S1() != origin {
			continue
		}
		dest := mv.S2()
		if board.Piece(dest) != chess.NoPiece {
			m[dest.String()] = CaptureDestination
		} else {
			m[dest.String()] = QuietDestination
		}
	}
	return m
}

func parseSquare(s string) (chess.Square, bool) {
	if len(s) != 2 {
		return chess.NoSquare, false
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return chess.NoSquare, false
	}
	return chess.NewSquare(chess.File(file-'a'), chess.Rank(rank-'1')), true
}
