package bracket

import (
	"fmt"
	"strconv"
	"strings"
)

const csvHeader = "round,matchId,player1,player2,player1Display,player2Display,p1wins,p2wins,status,winner,winnerDisplay"

// LegacyDefaults supplies format/bestOf/frozen when a persisted file predates
// the metadata header line.
type LegacyDefaults struct {
	Format string
	BestOf int
	Frozen bool
}

// encode renders a State as the bracket CSV format: a `#` metadata line,
// the fixed column header, then one record per match.
func encode(s *State) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# format=%s,bestOf=%d,participants=%d,frozen=%t\n", s.Format, s.BestOf, s.Participants, s.Frozen)
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for _, m := range s.Matches {
		fmt.Fprintf(&b, "%d,%d,%s,%s,%s,%s,%d,%d,%s,%s,%s\n",
			m.Round, m.MatchID, m.P1ID, m.P2ID, m.P1Display, m.P2Display,
			m.P1Wins, m.P2Wins, m.Status, m.WinnerID, m.WinnerDisplay)
	}
	return []byte(b.String())
}

// decode parses the CSV format, tolerating two legacy variants: a missing
// metadata line (first non-empty line treated as the column
// header, defaults fill format/bestOf/frozen) and 8-column records with no
// display names (identity copied into display).
func decode(data []byte, legacy LegacyDefaults) (*State, error) {
	lines := splitLines(string(data))
	lines = nonEmpty(lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("bracket: empty persisted file")
	}

	idx := 0
	format := legacy.Format
	bestOf := legacy.BestOf
	frozen := legacy.Frozen
	hasMetadata := strings.HasPrefix(lines[0], "#")
	if hasMetadata {
		meta := parseMetadata(lines[0])
		if v, ok := meta["format"]; ok {
			format = v
		}
		if v, ok := meta["bestOf"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				bestOf = n
			}
		}
		if v, ok := meta["frozen"]; ok {
			frozen = v == "true"
		}
		idx++
	}

	// idx now points at the column header line; skip it unconditionally,
	// whether it's the fixed header or a legacy header with a different
	// shape — the column order is fixed either way.
	idx++

	s := newState(format, 0, bestOf)
	s.Frozen = frozen

	for ; idx < len(lines); idx++ {
		m, err := decodeRecord(lines[idx])
		if err != nil {
			return nil, err
		}
		s.Matches = append(s.Matches, m)
		if m.P1ID != "" {
			s.DisplayNames[m.P1ID] = displayOr(m.P1Display, m.P1ID)
		}
		if m.P2ID != "" {
			s.DisplayNames[m.P2ID] = displayOr(m.P2Display, m.P2ID)
		}
		if m.Status == StatusActive || m.Status == StatusWaiting {
			if m.P1ID != "" {
				s.PlayerToMatch[m.P1ID] = m
			}
			if m.P2ID != "" {
				s.PlayerToMatch[m.P2ID] = m
			}
		}
	}

	round1 := s.matchesInRound(1)
	s.Participants = len(round1) * 2
	s.CurrentRound = s.highestNonPendingRound()
	s.Initialized = len(s.Matches) > 0
	return s, nil
}

// highestNonPendingRound mirrors the invariant that CurrentRound tracks the
// furthest round that has actually started: the highest round holding an
// active or complete match. A waiting match does not count, just as
// advanceWinner only raises CurrentRound once a match becomes active.
func (s *State) highestNonPendingRound() int {
	round := 1
	for _, m := range s.Matches {
		if (m.Status == StatusActive || m.Status == StatusComplete) && m.Round > round {
			round = m.Round
		}
	}
	return round
}

func decodeRecord(line string) (*Match, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 11 && len(fields) != 8 {
		return nil, fmt.Errorf("bracket: malformed record %q", line)
	}

	round, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("bracket: bad round in %q: %w", line, err)
	}
	matchID, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return nil, fmt.Errorf("bracket: bad matchId in %q: %w", line, err)
	}

	m := &Match{Round: round, MatchID: matchID}

	if len(fields) == 11 {
		m.P1ID = fields[2]
		m.P2ID = fields[3]
		m.P1Display = fields[4]
		m.P2Display = fields[5]
		m.P1Wins, _ = strconv.Atoi(strings.TrimSpace(fields[6]))
		m.P2Wins, _ = strconv.Atoi(strings.TrimSpace(fields[7]))
		m.Status = MatchStatus(fields[8])
		m.WinnerID = fields[9]
		m.WinnerDisplay = fields[10]
		return m, nil
	}

	// Legacy 8-column record: round,matchId,player1,player2,p1wins,p2wins,status,winner.
	// Display names are missing; identity doubles as display.
	m.P1ID = fields[2]
	m.P2ID = fields[3]
	m.P1Display = displayOr("", fields[2])
	m.P2Display = displayOr("", fields[3])
	m.P1Wins, _ = strconv.Atoi(strings.TrimSpace(fields[4]))
	m.P2Wins, _ = strconv.Atoi(strings.TrimSpace(fields[5]))
	m.Status = MatchStatus(fields[6])
	m.WinnerID = fields[7]
	m.WinnerDisplay = displayOr("", fields[7])
	return m, nil
}

func displayOr(display, id string) string {
	if display != "" {
		return display
	}
	return id
}

func parseMetadata(line string) map[string]string {
	line = strings.TrimPrefix(line, "#")
	line = strings.TrimSpace(line)
	out := make(map[string]string)
	for _, pair := range strings.Split(line, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
