package rating

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/braccet/core/internal/applog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore("gen9ou", dir, applog.Noop{})
}

func TestNewPlayerDefaults(t *testing.T) {
	s := newTestStore(t)
	if elo := s.GetRating(context.Background(), "newplayer", nil); elo != 1000 {
		t.Fatalf("expected default elo 1000, got %v", elo)
	}
}

func TestUpdateRatingWinLossSymmetry(t *testing.T) {
	s := newTestStore(t)
	_, elo1, elo2 := s.UpdateRating(context.Background(), "Alice", "Bob", 1, io.Discard)
	// Fresh 1000-rated players, K=32, E=0.5: winner gains 16, loser pinned
	// to the 1000 floor.
	if elo1 != 1016 {
		t.Fatalf("winner elo = %v, want 1016", elo1)
	}
	if elo2 != 1000 {
		t.Fatalf("loser elo = %v, want floor 1000", elo2)
	}

	ladder := s.GetLadder(context.Background())
	if len(ladder) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(ladder))
	}
	if ladder[0].Display != "Alice" {
		t.Fatalf("expected Alice ranked first, got %s", ladder[0].Display)
	}
	if ladder[0].W != 1 || ladder[1].L != 1 {
		t.Fatalf("expected win/loss counters updated, got %+v %+v", ladder[0], ladder[1])
	}
}

func TestUpdateRatingTie(t *testing.T) {
	s := newTestStore(t)
	s.UpdateRating(context.Background(), "Alice", "Bob", 0.5, io.Discard)
	ladder := s.GetLadder(context.Background())
	for _, r := range ladder {
		if r.T != 1 {
			t.Fatalf("expected tie counter bumped for %s, got %+v", r.Display, r)
		}
	}
}

func TestUpdateRatingInvalidatedBattleNoCredit(t *testing.T) {
	s := newTestStore(t)
	score, elo1, elo2 := s.UpdateRating(context.Background(), "Alice", "Bob", -1, io.Discard)
	if score != 0 || elo1 != 1000 || elo2 != 1000 {
		t.Fatalf("expected no rating credit on invalidated battle, got score=%v elo1=%v elo2=%v", score, elo1, elo2)
	}
	ladder := s.GetLadder(context.Background())
	if len(ladder) != 0 {
		t.Fatalf("expected no rows created for an invalidated battle, got %d", len(ladder))
	}
}

func TestHeadToHeadSymmetric(t *testing.T) {
	s := newTestStore(t)
	s.UpdateRating(context.Background(), "Alice", "Bob", 1, io.Discard)
	aliceVsBob := s.GetH2H(context.Background(), "Alice", "Bob")
	bobVsAlice := s.GetH2H(context.Background(), "Bob", "Alice")
	if aliceVsBob.W != 1 || bobVsAlice.L != 1 {
		t.Fatalf("expected symmetric h2h, got alice=%+v bob=%+v", aliceVsBob, bobVsAlice)
	}
}

func TestLadderPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	s1 := NewStore("gen9ou", dir, applog.Noop{})
	s1.UpdateRating(context.Background(), "Alice", "Bob", 1, io.Discard)

	s2 := NewStore("gen9ou", dir, applog.Noop{})
	ladder := s2.GetLadder(context.Background())
	if len(ladder) != 2 {
		t.Fatalf("expected reloaded ladder to have 2 rows, got %d", len(ladder))
	}
	if ladder[0].Display != "Alice" || ladder[0].W != 1 {
		t.Fatalf("unexpected reloaded row: %+v", ladder[0])
	}
}

func TestLegacyFiveColumnFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen9ou.tsv")
	content := "Elo\tUsername\tW\tL\tT\r\n1200\tLegacyPlayer\t5\t2\t1\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore("gen9ou", dir, applog.Noop{})
	ladder := s.GetLadder(context.Background())
	if len(ladder) != 1 {
		t.Fatalf("expected 1 legacy row, got %d", len(ladder))
	}
	row := ladder[0]
	if row.Elo != 1200 || row.W != 5 || row.L != 2 || row.T != 1 {
		t.Fatalf("unexpected legacy row values: %+v", row)
	}
	if row.GamesPlayed != 8 {
		t.Fatalf("expected games played synthesized as w+l+t=8, got %d", row.GamesPlayed)
	}
	wantRD := 130.0 - 2*8
	if row.RD != wantRD {
		t.Fatalf("expected synthesized rd=%v, got %v", wantRD, row.RD)
	}
}

func TestMalformedH2HJSONResetsToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen9ou.tsv")
	content := tsvHeader + "\r\n1000\tAlice\t0\t0\t0\t1500\t130\tUnknown\t0\t\tnot-json\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore("gen9ou", dir, applog.Noop{})
	ladder := s.GetLadder(context.Background())
	if len(ladder) != 1 {
		t.Fatalf("expected 1 row, got %d", len(ladder))
	}
	if ladder[0].H2H == nil || len(ladder[0].H2H) != 0 {
		t.Fatalf("expected h2h reset to empty map, got %+v", ladder[0].H2H)
	}
}

func TestGXEUnknownWhileRDAbove100(t *testing.T) {
	s := newTestStore(t)
	s.UpdateRating(context.Background(), "Alice", "Bob", 1, io.Discard)
	ladder := s.GetLadder(context.Background())
	for _, r := range ladder {
		if r.RD > 100 && r.GXE.Known {
			t.Fatalf("expected Unknown GXE while RD=%v > 100, got %+v", r.RD, r.GXE)
		}
	}
}

func TestGetTopFiltersByPrefix(t *testing.T) {
	s := newTestStore(t)
	s.UpdateRating(context.Background(), "AliceOne", "BobTwo", 1, io.Discard)
	html := s.GetTop(context.Background(), "alice")
	if html == "" {
		t.Fatal("expected non-empty html")
	}
	if want := "AliceOne"; !strings.Contains(html, want) {
		t.Fatalf("expected filtered output to contain %q, got %q", want, html)
	}
	if strings.Contains(html, "BobTwo") {
		t.Fatalf("expected filtered output to exclude BobTwo, got %q", html)
	}
}
