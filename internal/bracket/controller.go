package bracket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/braccet/core/internal/applog"
	"github.com/braccet/core/internal/config"
	"github.com/braccet/core/internal/fsstore"
	"github.com/braccet/core/internal/identity"
)

var (
	ErrAlreadyInitialized  = errors.New("bracket: tournament already initialized")
	ErrNotInitialized      = errors.New("bracket: no tournament initialized")
	ErrInvalidBestOf       = errors.New("bracket: bestOf must be between 1 and 999")
	ErrInvalidParticipants = errors.New("bracket: participant count must be a power of two, at least 2")
	ErrDuplicateIdentity   = errors.New("bracket: duplicate participant identity")
	ErrAlreadyFrozen       = errors.New("bracket: tournament already frozen")
	ErrNotFrozen           = errors.New("bracket: tournament is not frozen")
)

// Controller is the process-wide bracket singleton: one instance owns the
// tournament tied to a single persisted file. Tests construct independent
// instances against temporary paths.
type Controller struct {
	path     string
	defaults config.BracketDefaults
	log      applog.Logger
	writer   fsstore.SerialWriter

	mu    sync.Mutex
	state *State
}

func NewController(path string, defaults config.BracketDefaults, logger applog.Logger) *Controller {
	if logger == nil {
		logger = applog.New("bracket")
	}
	return &Controller{path: path, defaults: defaults, log: logger}
}

// Initialize creates a new tournament from display names, seeding round 1
// with standard tournament seeding (see Seeds/Pairings). ctx is threaded
// down to the persisting write so a client disconnect aborts it.
func (c *Controller) Initialize(ctx context.Context, format string, players []string, bestOf int, randomize bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil && c.state.Initialized {
		return ErrAlreadyInitialized
	}
	if bestOf < 1 || bestOf > 999 {
		return ErrInvalidBestOf
	}
	n := len(players)
	if n < 2 || BracketSize(n) != n {
		return ErrInvalidParticipants
	}

	ids := make([]string, n)
	seen := make(map[string]bool, n)
	for i, p := range players {
		id := identity.Canonicalize(p)
		if seen[id] {
			return ErrDuplicateIdentity
		}
		seen[id] = true
		ids[i] = id
	}

	if randomize {
		names := make([]string, n)
		copy(names, players)
		Shuffle(names)
		// Re-derive ids/order from the shuffled display list so seed
		// assignment below reads from the shuffled slice directly.
		players = names
		for i, p := range players {
			ids[i] = identity.Canonicalize(p)
		}
	}

	s := newState(format, n, bestOf)
	pairs := Pairings(n)
	matchID := 1
	round1 := make([]*Match, len(pairs))
	for i, pair := range pairs {
		p1, p2 := pair[0]-1, pair[1]-1
		m := &Match{
			Round:     1,
			MatchID:   matchID,
			P1ID:      ids[p1],
			P2ID:      ids[p2],
			P1Display: players[p1],
			P2Display: players[p2],
			Status:    StatusActive,
		}
		matchID++
		round1[i] = m
		s.Matches = append(s.Matches, m)
		s.PlayerToMatch[m.P1ID] = m
		s.PlayerToMatch[m.P2ID] = m
		s.DisplayNames[m.P1ID] = m.P1Display
		s.DisplayNames[m.P2ID] = m.P2Display
	}

	totalRounds := TotalRounds(BracketSize(n))
	prev := round1
	for round := 2; round <= totalRounds; round++ {
		numMatches := len(prev) / 2
		cur := make([]*Match, numMatches)
		for i := 0; i < numMatches; i++ {
			m := &Match{Round: round, MatchID: matchID, Status: StatusPending}
			matchID++
			cur[i] = m
			s.Matches = append(s.Matches, m)
		}
		prev = cur
	}

	s.Initialized = true
	c.state = s
	return c.persistLocked(ctx)
}

// LoadOrInitialize resumes a persisted tournament if present, otherwise
// auto-creates one from the configured defaults, otherwise leaves the
// controller idle. Load failures are soft: logged, never returned.
func (c *Controller) LoadOrInitialize(ctx context.Context) {
	c.mu.Lock()
	data, found, err := fsstore.ReadIfExists(ctx, c.path)
	c.mu.Unlock()
	if err != nil {
		c.log.Warnf("failed to read %s: %v", c.path, err)
	} else if found {
		legacy := LegacyDefaults{Format: c.defaults.Format, BestOf: c.defaults.BestOf, Frozen: false}
		s, err := decode(data, legacy)
		if err != nil {
			c.log.Warnf("failed to parse %s, starting idle: %v", c.path, err)
		} else {
			c.mu.Lock()
			c.state = s
			c.mu.Unlock()
			return
		}
	}

	if c.defaults.AutoInit && len(c.defaults.PlayerList) >= 2 {
		if err := c.Initialize(ctx, c.defaults.Format, c.defaults.PlayerList, c.defaults.BestOf, c.defaults.RandomizeSeeding); err != nil {
			c.log.Warnf("auto-init failed: %v", err)
		}
	}
}

// CanMatch reports whether a and b are each other's opponents in an active
// match, honoring the freeze restriction to the earliest incomplete round.
func (c *Controller) CanMatch(a, b string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	a, b = identity.Canonicalize(a), identity.Canonicalize(b)
	m, ok := c.state.PlayerToMatch[a]
	if !ok || m.Status != StatusActive || m.Opponent(a) != b {
		return false
	}
	if c.state.Frozen && m.Round != c.state.earliestIncompleteRound() {
		return false
	}
	return true
}

// CanSearch reports whether id's current match is active or waiting,
// subject to the same freeze restriction as CanMatch.
func (c *Controller) CanSearch(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	m, ok := c.state.PlayerToMatch[identity.Canonicalize(id)]
	if !ok || (m.Status != StatusActive && m.Status != StatusWaiting) {
		return false
	}
	if c.state.Frozen && m.Round != c.state.earliestIncompleteRound() {
		return false
	}
	return true
}

// GetOpponent returns id's current opponent if id is in an active match.
func (c *Controller) GetOpponent(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return "", false
	}
	id = identity.Canonicalize(id)
	m, ok := c.state.PlayerToMatch[id]
	if !ok || m.Status != StatusActive {
		return "", false
	}
	opp := m.Opponent(id)
	return opp, opp != ""
}

// RecordWin increments the winner's series score. It never returns an
// error: battle-end hooks are fire-and-forget, so a call with no matching
// active series is logged and ignored.
func (c *Controller) RecordWin(ctx context.Context, winner, loser string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		c.log.Warnf("recordWin(%s,%s): no tournament initialized", winner, loser)
		return
	}
	winner, loser = identity.Canonicalize(winner), identity.Canonicalize(loser)
	m, ok := c.state.PlayerToMatch[winner]
	if !ok || m.Status != StatusActive || !m.IsParticipant(loser) {
		c.log.Warnf("recordWin(%s,%s): no matching active series", winner, loser)
		return
	}

	switch winner {
	case m.P1ID:
		m.P1Wins++
	case m.P2ID:
		m.P2Wins++
	}

	if m.P1Wins >= c.state.winThreshold() || m.P2Wins >= c.state.winThreshold() {
		m.Status = StatusComplete
		if m.P1Wins > m.P2Wins {
			m.WinnerID, m.WinnerDisplay = m.P1ID, m.P1Display
		} else {
			m.WinnerID, m.WinnerDisplay = m.P2ID, m.P2Display
		}
		delete(c.state.PlayerToMatch, m.P1ID)
		delete(c.state.PlayerToMatch, m.P2ID)
		c.advanceWinner(m)
	}

	if err := c.persistLocked(ctx); err != nil {
		c.log.Errorf("persist after recordWin failed: %v", err)
	}
}

// advanceWinner seats m's winner in the following round. Callers hold c.mu.
func (c *Controller) advanceWinner(m *Match) {
	totalRounds := c.state.totalRounds()
	if m.Round == totalRounds {
		c.log.Infof("tournament complete, winner=%s", m.WinnerDisplay)
		return
	}
	if c.state.Frozen {
		c.log.Infof("match %d complete but tournament frozen, holding winner %s", m.MatchID, m.WinnerDisplay)
		return
	}

	firstID := c.state.firstMatchIDOfRound(m.Round)
	nextIndex := (m.MatchID - firstID) / 2
	nextRound := c.state.matchesInRound(m.Round + 1)
	if nextIndex < 0 || nextIndex >= len(nextRound) {
		c.log.Errorf("integrity error: match %d has no valid next-round slot", m.MatchID)
		return
	}
	n := nextRound[nextIndex]

	switch {
	case !n.HasP1():
		n.P1ID, n.P1Display = m.WinnerID, m.WinnerDisplay
	case !n.HasP2():
		n.P2ID, n.P2Display = m.WinnerID, m.WinnerDisplay
	default:
		c.log.Errorf("integrity error: match %d has no empty slot for winner %s", n.MatchID, m.WinnerDisplay)
		return
	}
	// Register the seated winner immediately, even if n is only waiting on
	// an opponent, so CanSearch can find them before the slot fills.
	c.state.PlayerToMatch[m.WinnerID] = n

	if n.HasP1() && n.HasP2() {
		n.Status = StatusActive
		if n.Round > c.state.CurrentRound {
			c.state.CurrentRound = n.Round
		}
	} else {
		n.Status = StatusWaiting
	}
}

// isWinnerPlaced reports whether a completed match's winner has already
// been seated in the following round.
func (c *Controller) isWinnerPlaced(m *Match) bool {
	totalRounds := c.state.totalRounds()
	if m.Round >= totalRounds {
		return true
	}
	firstID := c.state.firstMatchIDOfRound(m.Round)
	nextIndex := (m.MatchID - firstID) / 2
	nextRound := c.state.matchesInRound(m.Round + 1)
	if nextIndex < 0 || nextIndex >= len(nextRound) {
		return true
	}
	n := nextRound[nextIndex]
	return n.P1ID == m.WinnerID || n.P2ID == m.WinnerID
}

// GetStatus renders a multi-line human-readable summary, rounds in order,
// with a per-match annotation.
func (c *Controller) GetStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Snapshot is the JSON-friendly view of tournament state served by the
// HTTP surface's GET /brackets, alongside the plain-text status
// string from GetStatus.
type Snapshot struct {
	Format       string          `json:"format"`
	BestOf       int             `json:"best_of"`
	Participants int             `json:"participants"`
	CurrentRound int             `json:"current_round"`
	TotalRounds  int             `json:"total_rounds"`
	Frozen       bool            `json:"frozen"`
	Initialized  bool            `json:"initialized"`
	Matches      []MatchSnapshot `json:"matches"`
	Status       string          `json:"status"`
}

// MatchSnapshot is one match's externally-visible fields.
type MatchSnapshot struct {
	Round         int         `json:"round"`
	MatchID       int         `json:"match_id"`
	P1ID          string      `json:"p1_id"`
	P2ID          string      `json:"p2_id"`
	P1Display     string      `json:"p1_display"`
	P2Display     string      `json:"p2_display"`
	P1Wins        int         `json:"p1_wins"`
	P2Wins        int         `json:"p2_wins"`
	Status        MatchStatus `json:"status"`
	WinnerID      string      `json:"winner_id,omitempty"`
	WinnerDisplay string      `json:"winner_display,omitempty"`
}

// Snapshot renders the full structured tournament state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || !c.state.Initialized {
		return Snapshot{Status: "No tournament is currently active."}
	}

	matches := make([]MatchSnapshot, 0, len(c.state.Matches))
	sorted := make([]*Match, len(c.state.Matches))
	copy(sorted, c.state.Matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Round != sorted[j].Round {
			return sorted[i].Round < sorted[j].Round
		}
		return sorted[i].MatchID < sorted[j].MatchID
	})
	for _, m := range sorted {
		matches = append(matches, MatchSnapshot{
			Round: m.Round, MatchID: m.MatchID,
			P1ID: m.P1ID, P2ID: m.P2ID,
			P1Display: m.P1Display, P2Display: m.P2Display,
			P1Wins: m.P1Wins, P2Wins: m.P2Wins,
			Status: m.Status, WinnerID: m.WinnerID, WinnerDisplay: m.WinnerDisplay,
		})
	}

	return Snapshot{
		Format:       c.state.Format,
		BestOf:       c.state.BestOf,
		Participants: c.state.Participants,
		CurrentRound: c.state.CurrentRound,
		TotalRounds:  c.state.totalRounds(),
		Frozen:       c.state.Frozen,
		Initialized:  c.state.Initialized,
		Matches:      matches,
		Status:       c.statusLocked(),
	}
}

// statusLocked is GetStatus's body, factored out so Snapshot can reuse it
// while already holding c.mu.
func (c *Controller) statusLocked() string {
	if c.state == nil || !c.state.Initialized {
		return "No tournament is currently active."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tournament: %s (best of %d)%s\n", c.state.Format, c.state.BestOf, frozenSuffix(c.state.Frozen))
	total := c.state.totalRounds()
	for round := 1; round <= total; round++ {
		fmt.Fprintf(&b, "Round %d:\n", round)
		matches := c.state.matchesInRound(round)
		sort.Slice(matches, func(i, j int) bool { return matches[i].MatchID < matches[j].MatchID })
		for _, m := range matches {
			b.WriteString("  ")
			b.WriteString(matchLine(m))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func matchLine(m *Match) string {
	p1 := displayOr(m.P1Display, "TBD")
	p2 := displayOr(m.P2Display, "TBD")
	switch m.Status {
	case StatusComplete:
		return fmt.Sprintf("[%d] %s vs %s — %s wins (%d-%d)", m.MatchID, p1, p2, m.WinnerDisplay, m.P1Wins, m.P2Wins)
	case StatusActive:
		return fmt.Sprintf("[%d] %s vs %s — in progress (%d-%d)", m.MatchID, p1, p2, m.P1Wins, m.P2Wins)
	case StatusWaiting:
		return fmt.Sprintf("[%d] %s vs %s — waiting on opponent", m.MatchID, p1, p2)
	default:
		return fmt.Sprintf("[%d] TBD vs TBD — pending", m.MatchID)
	}
}

func frozenSuffix(frozen bool) string {
	if frozen {
		return " [FROZEN]"
	}
	return ""
}

// Freeze stops further advancement; recordWin still tallies scores.
func (c *Controller) Freeze(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || !c.state.Initialized {
		return ErrNotInitialized
	}
	if c.state.Frozen {
		return ErrAlreadyFrozen
	}
	c.state.Frozen = true
	return c.persistLocked(ctx)
}

// Resume clears the freeze and advances every winner that was blocked
// while frozen, in ascending matchId order.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || !c.state.Initialized {
		return ErrNotInitialized
	}
	if !c.state.Frozen {
		return ErrNotFrozen
	}
	c.state.Frozen = false

	pending := make([]*Match, 0)
	for _, m := range c.state.Matches {
		if m.Status == StatusComplete && !c.isWinnerPlaced(m) {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].MatchID < pending[j].MatchID })
	for _, m := range pending {
		c.advanceWinner(m)
	}

	return c.persistLocked(ctx)
}

// Reset clears all state and removes the persisted file.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
	return fsstore.DeleteIfExists(ctx, c.path)
}

func (c *Controller) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil && c.state.Initialized
}

func (c *Controller) IsFrozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil && c.state.Frozen
}

// persistLocked serializes the current state to disk through the
// single-slot write queue. Callers must hold c.mu.
func (c *Controller) persistLocked(ctx context.Context) error {
	data := encode(c.state)
	if err := c.writer.Write(ctx, c.path, data); err != nil {
		c.log.Errorf("persist failed: %v", err)
		return fmt.Errorf("bracket: persist failed: %w", err)
	}
	return nil
}
