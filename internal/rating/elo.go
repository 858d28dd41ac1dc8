package rating

import "math"

// eloKFactor picks the effective K-factor: banded by experience, nudged
// by rating band, and boosted further for a clear upset.
func eloKFactor(games int, elo, foeElo, score float64) float64 {
	var k float64
	switch {
	case games < 20:
		k = 32
	case games < 50:
		k = 24
	default:
		k = 16
	}

	if elo < 1100 {
		k = math.Min(k+8, 32)
	}
	if elo > 1600 {
		k = math.Max(k-4, 12)
	}

	if math.Abs(elo-foeElo) > 200 {
		underdog := elo < foeElo
		switch {
		case underdog && score == 1:
			k *= 1.1
		case !underdog && score == 0:
			k *= 1.05
		}
	}

	return k
}

// updateElo applies the standard ELO update, elo' = elo + K·(score -
// expected), clamped to the hard floor of 1000.
func updateElo(elo, foeElo, score float64, games int) float64 {
	k := eloKFactor(games, elo, foeElo, score)
	expected := 1.0 / (1.0 + math.Pow(10, (foeElo-elo)/400))
	newElo := elo + k*(score-expected)
	if newElo < 1000 {
		newElo = 1000
	}
	return newElo
}
