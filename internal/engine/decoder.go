package engine

import "strings"

// lineKind classifies raw worker output before any state transition sees it.
type lineKind int

const (
	lineUnknown lineKind = iota
	lineHandshake
	lineBestMove
)

type decoded struct {
	kind lineKind
	move string
}

// decodeLine maps one raw engine line to a tagged variant. Anything that is
// neither the handshake acknowledgement nor a resolved move is unknown and
// must be ignored by the caller.
func decodeLine(raw string) decoded {
	line := strings.TrimSpace(raw)
	if line == "" {
		return decoded{kind: lineUnknown}
	}
	if strings.Contains(line, "readyok") {
		return decoded{kind: lineHandshake}
	}
	if strings.HasPrefix(line, "bestmove") {
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			return decoded{kind: lineBestMove, move: parts[1]}
		}
		// "bestmove" with no token is malformed, not a resolved move.
		return decoded{kind: lineUnknown}
	}
	return decoded{kind: lineUnknown}
}
