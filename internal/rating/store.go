package rating

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/braccet/core/internal/applog"
	"github.com/braccet/core/internal/fsstore"
	"github.com/braccet/core/internal/identity"
)

const tsvHeader = "Elo\tUsername\tW\tL\tT\tGlicko\tRating_Deviation\tGXE\tGames_Played\tLast_update\tH2H_Data"

// RatingCache is an optional memoization slot on a live user object,
// keyed by format, so repeat rating reads skip the ladder lookup.
type RatingCache interface {
	Get(format string) (float64, bool)
	Set(format string, elo float64)
}

// Store is one format's ladder: rows loaded lazily on first access and
// cached for the process lifetime. The mutex covers both the in-memory
// rows and the re-entrant save guard.
type Store struct {
	format string
	path   string
	log    applog.Logger

	mu     sync.Mutex
	rows   []*Row
	index  map[string]int
	loaded bool
	saving int32
}

// NewStore opens (without yet loading) the ladder for format, backed by
// <dataDir>/<format>.tsv.
func NewStore(format, dataDir string, logger applog.Logger) *Store {
	if logger == nil {
		logger = applog.New("rating")
	}
	return &Store{
		format: format,
		path:   filepath.Join(dataDir, format+".tsv"),
		log:    logger,
	}
}

func (s *Store) ensureLoadedLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.index = make(map[string]int)

	data, found, err := fsstore.ReadIfExists(ctx, s.path)
	if err != nil {
		s.log.Warnf("failed reading ladder %s: %v", s.path, err)
	} else if found {
		rows, err := decodeLadder(data)
		if err != nil {
			s.log.Warnf("failed to parse ladder %s, starting empty: %v", s.path, err)
		} else {
			s.rows = rows
		}
	}
	for i, r := range s.rows {
		s.index[r.Identity] = i
	}
	s.loaded = true
}

// GetLadder returns the cached ordered sequence, loading from disk on
// first call. The returned slice is a defensive copy.
func (s *Store) GetLadder(ctx context.Context) []*Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// GetRating returns id's current ELO, or 1000 if the player has no row
// yet. A supplied cache is consulted first and refreshed on read.
func (s *Store) GetRating(ctx context.Context, id string, cache RatingCache) float64 {
	if cache != nil {
		if v, ok := cache.Get(s.format); ok {
			return v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	canon := identity.Canonicalize(id)
	idx, ok := s.index[canon]
	if !ok {
		return 1000
	}
	elo := s.rows[idx].Elo
	if cache != nil {
		cache.Set(s.format, elo)
	}
	return elo
}

// ratingOrDefaultLocked returns id's current ELO without creating a row,
// the same 1000 fallback GetRating uses. Callers must hold s.mu and have
// already called ensureLoadedLocked.
func (s *Store) ratingOrDefaultLocked(id string) float64 {
	if idx, ok := s.index[id]; ok {
		return s.rows[idx].Elo
	}
	return 1000
}

// getOrCreateLocked returns id's row, seeding a fresh one if absent.
// Callers must hold s.mu and have already called ensureLoadedLocked.
func (s *Store) getOrCreateLocked(id, display string) *Row {
	if idx, ok := s.index[id]; ok {
		return s.rows[idx]
	}
	row := newRow(id, display)
	s.rows = append(s.rows, row)
	s.index[id] = len(s.rows) - 1
	return row
}

// UpdateRating records a finished battle between p1Name and p2Name. p1Score
// is p1's result (1 win, 0 loss, 0.5 tie); a negative score marks an
// invalidated battle that earns neither side rating credit — the ladder is
// left untouched, no rows are created. Human-readable change lines are
// appended to sink (pass io.Discard to suppress them).
func (s *Store) UpdateRating(ctx context.Context, p1Name, p2Name string, p1Score float64, sink io.Writer) (float64, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	id1 := identity.Canonicalize(p1Name)
	id2 := identity.Canonicalize(p2Name)

	if p1Score < 0 {
		s.log.Warnf("invalidated battle between %s and %s, no rating credit", p1Name, p2Name)
		elo1, elo2 := s.ratingOrDefaultLocked(id1), s.ratingOrDefaultLocked(id2)
		writeLine(sink, "%s vs %s: battle invalidated, no rating change", p1Name, p2Name)
		return 0, elo1, elo2
	}

	r1 := s.getOrCreateLocked(id1, p1Name)
	r2 := s.getOrCreateLocked(id2, p2Name)

	p2Score := 1 - p1Score
	oldElo1, oldElo2 := r1.Elo, r2.Elo

	elo1New := updateElo(r1.Elo, r2.Elo, p1Score, r1.GamesPlayed)
	elo2New := updateElo(r2.Elo, r1.Elo, p2Score, r2.GamesPlayed)
	glicko1New, rd1New := updateGlicko(r1.Glicko, r1.RD, r2.Glicko, r2.RD, p1Score)
	glicko2New, rd2New := updateGlicko(r2.Glicko, r2.RD, r1.Glicko, r1.RD, p2Score)

	applyOutcome(r1, r2, p1Score)

	r1.Elo, r1.Glicko, r1.RD, r1.GXE = elo1New, glicko1New, rd1New, computeGXE(glicko1New, rd1New)
	r2.Elo, r2.Glicko, r2.RD, r2.GXE = elo2New, glicko2New, rd2New, computeGXE(glicko2New, rd2New)
	r1.GamesPlayed++
	r2.GamesPlayed++
	now := time.Now().UTC().Format(time.RFC3339)
	r1.LastUpdate, r2.LastUpdate = now, now

	s.resortLocked()

	if err := s.save(ctx); err != nil {
		s.log.Errorf("persist ladder %s failed: %v", s.path, err)
	}

	writeLine(sink, "%s: %s -> %s (%+.1f)", r1.Display, formatFixed(oldElo1, 1), formatFixed(r1.Elo, 1), r1.Elo-oldElo1)
	writeLine(sink, "%s: %s -> %s (%+.1f)", r2.Display, formatFixed(oldElo2, 1), formatFixed(r2.Elo, 1), r2.Elo-oldElo2)

	return p1Score, elo1New, elo2New
}

func writeLine(sink io.Writer, format string, args ...any) {
	if sink == nil {
		return
	}
	fmt.Fprintf(sink, format+"\n", args...)
}

// applyOutcome bumps win/loss/tie counters and the symmetric head-to-head
// maps. The cutoffs are kept as ranges (>0.6 win, <0.4 loss, else tie)
// even though the battle engine only ever reports 0, 0.5, or 1.
func applyOutcome(r1, r2 *Row, p1Score float64) {
	switch {
	case p1Score > 0.6:
		r1.W++
		r2.L++
		bumpH2H(r1, r2.Identity, 1, 0, 0)
		bumpH2H(r2, r1.Identity, 0, 1, 0)
	case p1Score < 0.4:
		r1.L++
		r2.W++
		bumpH2H(r1, r2.Identity, 0, 1, 0)
		bumpH2H(r2, r1.Identity, 1, 0, 0)
	default:
		r1.T++
		r2.T++
		bumpH2H(r1, r2.Identity, 0, 0, 1)
		bumpH2H(r2, r1.Identity, 0, 0, 1)
	}
}

func bumpH2H(r *Row, opponent string, w, l, t int) {
	if r.H2H == nil {
		r.H2H = make(map[string]H2HEntry)
	}
	e := r.H2H[opponent]
	e.W += w
	e.L += l
	e.T += t
	r.H2H[opponent] = e
}

// GetH2H returns id's head-to-head record against opponentID, the zero
// value if they've never played.
func (s *Store) GetH2H(ctx context.Context, id, opponentID string) H2HEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	idx, ok := s.index[identity.Canonicalize(id)]
	if !ok {
		return H2HEntry{}
	}
	return s.rows[idx].H2H[identity.Canonicalize(opponentID)]
}

// resortLocked restores the sorted-by-elo-descending invariant after an
// update. A stable sort keeps equal-elo rows in insertion order.
func (s *Store) resortLocked() {
	sort.SliceStable(s.rows, func(i, j int) bool { return s.rows[i].Elo > s.rows[j].Elo })
	for i, r := range s.rows {
		s.index[r.Identity] = i
	}
}

// save guards against re-entrancy with a single flag: if a save is already
// in flight, this call is dropped, trusting the next UpdateRating's save to
// include this mutation too (every update calls save).
func (s *Store) save(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.saving, 0, 1) {
		s.log.Warnf("save already in progress for %s, dropping", s.format)
		return nil
	}
	defer atomic.StoreInt32(&s.saving, 0)
	return fsstore.WriteAtomic(ctx, s.path, encodeLadder(s.rows))
}

// GetTop renders the ladder (optionally filtered to identities with the
// given prefix) as a row-per-player HTML block.
func (s *Store) GetTop(ctx context.Context, prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	prefix = identity.Canonicalize(prefix)
	var b strings.Builder
	b.WriteString("<table><tr><th>Rank</th><th>Name</th><th>Elo</th><th>W</th><th>L</th><th>T</th><th>GXE</th></tr>")
	rank := 0
	for _, r := range s.rows {
		if prefix != "" && !strings.HasPrefix(r.Identity, prefix) {
			continue
		}
		rank++
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>",
			rank, r.Display, formatFixed(r.Elo, 1), r.W, r.L, r.T, r.GXE.String())
	}
	b.WriteString("</table>")
	return b.String()
}

// Visualize returns a single HTML row summarizing one identity's rating in
// this format, or "" if the identity has no row.
func (s *Store) Visualize(ctx context.Context, userName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	idx, ok := s.index[identity.Canonicalize(userName)]
	if !ok {
		return ""
	}
	r := s.rows[idx]
	return fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%d-%d-%d</td><td>%s</td></tr>",
		r.Display, formatFixed(r.Elo, 1), r.W, r.L, r.T, r.GXE.String())
}

// encodeLadder renders rows as the ladder TSV format: \r\n line
// terminators, one row per player.
func encodeLadder(rows []*Row) []byte {
	var b strings.Builder
	b.WriteString(tsvHeader)
	b.WriteString("\r\n")
	for _, r := range rows {
		h2hJSON, err := json.Marshal(r.H2H)
		if err != nil {
			h2hJSON = []byte("{}")
		}
		fmt.Fprintf(&b, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%d\t%s\t%s\r\n",
			formatFixed(r.Elo, 1), r.Display, r.W, r.L, r.T,
			formatFixed(r.Glicko, 1), formatFixed(r.RD, 1), r.GXE.String(),
			r.GamesPlayed, r.LastUpdate, string(h2hJSON))
	}
	return []byte(b.String())
}

// decodeLadder parses the TSV format, accepting both the 11-column current
// format and a legacy 5-column format (Elo, Username, W, L, T),
// synthesizing the missing rd, gxe, and games fields.
func decodeLadder(data []byte) ([]*Row, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var rows []*Row
	skippedHeader := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !skippedHeader {
			skippedHeader = true
			continue
		}
		row, err := decodeLadderRow(line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeLadderRow(line string) (*Row, error) {
	fields := strings.Split(line, "\t")

	switch len(fields) {
	case 11:
		elo, _ := strconv.ParseFloat(fields[0], 64)
		username := fields[1]
		w, _ := strconv.Atoi(fields[2])
		l, _ := strconv.Atoi(fields[3])
		t, _ := strconv.Atoi(fields[4])
		glicko, _ := strconv.ParseFloat(fields[5], 64)
		rd, _ := strconv.ParseFloat(fields[6], 64)
		games, _ := strconv.Atoi(fields[8])
		lastUpdate := fields[9]

		var h2h map[string]H2HEntry
		if err := json.Unmarshal([]byte(fields[10]), &h2h); err != nil || h2h == nil {
			h2h = make(map[string]H2HEntry)
		}

		return &Row{
			Identity:    identity.Canonicalize(username),
			Display:     username,
			Elo:         elo,
			W:           w,
			L:           l,
			T:           t,
			Glicko:      glicko,
			RD:          rd,
			GXE:         parseGXE(fields[7]),
			GamesPlayed: games,
			LastUpdate:  lastUpdate,
			H2H:         h2h,
		}, nil

	case 5:
		elo, _ := strconv.ParseFloat(fields[0], 64)
		username := fields[1]
		w, _ := strconv.Atoi(fields[2])
		l, _ := strconv.Atoi(fields[3])
		t, _ := strconv.Atoi(fields[4])
		games := w + l + t
		rd := math.Max(30, 130-2*float64(games))
		return &Row{
			Identity:    identity.Canonicalize(username),
			Display:     username,
			Elo:         elo,
			W:           w,
			L:           l,
			T:           t,
			Glicko:      elo,
			RD:          rd,
			GXE:         computeGXE(elo, rd),
			GamesPlayed: games,
			H2H:         make(map[string]H2HEntry),
		}, nil

	default:
		return nil, fmt.Errorf("rating: malformed ladder row %q", line)
	}
}

func parseGXE(s string) GXE {
	if s == "Unknown" {
		return GXE{Known: false}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return GXE{Known: false}
	}
	return GXE{Known: true, Percent: v}
}
