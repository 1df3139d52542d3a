package schedule

import (
	"github.com/derekprior/seasongen/internal/league"
)

// PreferenceThreshold is the lowest mean preference score a pairing may have
// for a slot's time band under strict matching.
const PreferenceThreshold = 0.5

// Scores per time band, earliest band first.
var preferenceScores = map[league.TimePreference][4]float64{
	league.MostlyEarly: {1.00, 0.75, 0.50, 0.25},
	league.Balanced:    {0.50, 1.00, 1.00, 0.50},
	league.MostlyLate:  {0.25, 0.50, 0.75, 1.00},
}

// PreferenceScore returns how well a band suits a team's preference. Unknown
// bands and preferences score 0.
func PreferenceScore(pref league.TimePreference, band int) float64 {
	scores, ok := preferenceScores[pref]
	if !ok || band < 0 || band >= len(scores) {
		return 0
	}
	return scores[band]
}

// PairingScore is the mean of both teams' scores for the band.
func PairingScore(home, away league.Team, band int) float64 {
	return (PreferenceScore(home.PreferredTime, band) + PreferenceScore(away.PreferredTime, band)) / 2
}
