// Package rating implements the per-format dual ELO + Glicko-1 rating
// store: ladder rows, GXE confidence scoring, head-to-head records, and the
// tab-separated ladder file format.
package rating

// H2HEntry is one opponent's head-to-head record against a given row.
type H2HEntry struct {
	W int `json:"w"`
	L int `json:"l"`
	T int `json:"t"`
}

// GXE is either a known percentage or the "Unknown" sentinel used while a
// rating is still provisional (RD > 100).
type GXE struct {
	Known   bool
	Percent float64
}

// String renders the GXE the way it's persisted and displayed: a
// two-decimal percentage, or the literal "Unknown".
func (g GXE) String() string {
	if !g.Known {
		return "Unknown"
	}
	return formatPercent(g.Percent)
}

// Row is one player's ladder entry for a single format.
type Row struct {
	Identity    string
	Display     string
	Elo         float64
	W, L, T     int
	Glicko      float64
	RD          float64
	GXE         GXE
	GamesPlayed int
	LastUpdate  string
	H2H         map[string]H2HEntry
}

// newRow seeds a row at elo=1000, glicko=1500, rd=130, gxe=Unknown, all
// counters zero.
func newRow(identity, display string) *Row {
	return &Row{
		Identity: identity,
		Display:  display,
		Elo:      1000,
		Glicko:   1500,
		RD:       130,
		GXE:      GXE{Known: false},
		H2H:      make(map[string]H2HEntry),
	}
}
