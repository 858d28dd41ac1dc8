package rating

import "math"

var ln10 = math.Log(10)

// glickoQ is q = ln(10)/400, the scaling constant used throughout Glicko-1.
var glickoQ = ln10 / 400

// glickoG is g(RD) = 1 / sqrt(1 + 3·(q·RD)² / π²), the deviation-weighting
// function applied to an opponent's rating deviation.
func glickoG(rd float64) float64 {
	return 1 / math.Sqrt(1+3*(glickoQ*rd)*(glickoQ*rd)/(math.Pi*math.Pi))
}

// glickoExpected is the Glicko-1 win probability estimate against an
// opponent of rating foeR and deviation foeRD.
func glickoExpected(r, foeR, foeRD float64) float64 {
	return 1 / (1 + math.Pow(10, -glickoG(foeRD)*(r-foeR)/400))
}

// updateGlicko applies one Glicko-1 update and rounds both outputs to one
// decimal place before storage.
func updateGlicko(r, rd, foeR, foeRD, score float64) (newR, newRD float64) {
	gVal := glickoG(foeRD)
	e := glickoExpected(r, foeR, foeRD)
	d2 := 1 / (glickoQ * glickoQ * gVal * gVal * e * (1 - e))

	invRD2 := 1 / (rd * rd)
	newR = r + (glickoQ/(invRD2+1/d2))*gVal*(score-e)
	newRD = math.Sqrt(1 / (invRD2 + 1/d2))
	newRD = clamp(newRD, 10, 350)

	return roundTo(newR, 1), roundTo(newRD, 1)
}

// glixare estimates the probability, as a percentage, that a player at
// (r, rd) beats a reference 1500-rated opponent. The rounding happens on
// the 0..10000 scale before dividing down to a two-decimal percentage.
func glixare(r, rd float64) float64 {
	numerator := (1500 - r) * math.Pi
	denom := math.Sqrt(3*ln10*ln10*rd*rd + 2500*(64*math.Pi*math.Pi+147*ln10*ln10))
	val := 10000 / (1 + math.Pow(10, numerator/denom))
	return math.Round(val) / 100
}

// computeGXE wraps glixare with the provisional-rating rule: while RD > 100
// the estimate is not trustworthy and the "Unknown" sentinel is stored
// instead.
func computeGXE(r, rd float64) GXE {
	if rd > 100 {
		return GXE{Known: false}
	}
	return GXE{Known: true, Percent: glixare(r, rd)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

func formatPercent(v float64) string {
	return formatFixed(v, 2)
}
