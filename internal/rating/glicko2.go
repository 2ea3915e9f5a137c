// Package rating implements the Glicko2 rating system for single-game
// batches.
//
// Ratings are kept in the Glicko2 internal scale (mu/phi/sigma); Glicko()
// converts back to the familiar 1500-based scale for display. Nothing here
// mutates shared state: Update returns a new rating and the caller persists
// it.
package rating

import "math"

const (
	// glickoScale converts between the Glicko and Glicko2 scales.
	glickoScale = 173.7178
	// defaultValue is the baseline Glicko rating.
	defaultValue = 1500.0
	// defaultDeviation is the baseline rating deviation on the Glicko scale.
	defaultDeviation = 350.0
	// defaultVolatility is the starting volatility for unrated players.
	defaultVolatility = 0.06

	// tau constrains volatility changes. Recommended values are in the range
	// 0.3 to 1.2; lower values cause less volatility.
	tau = 0.8

	// epsilon is the tolerance for the volatility iteration.
	epsilon = 0.000001

	maxIterations = 100
)

// Rating is a player's rating in the Glicko2 internal scale.
type Rating struct {
	Value      float64
	Deviation  float64
	Volatility float64
}

// Unrated is the rating assigned to a player who has never finished a game.
func Unrated() Rating {
	return Rating{
		Value:      0,
		Deviation:  defaultDeviation / glickoScale,
		Volatility: defaultVolatility,
	}
}

// Glicko converts the rating value to the human-facing 1500-based scale.
func (r Rating) Glicko() float64 {
	return r.Value*glickoScale + defaultValue
}

// Result is the outcome of a single game against an opponent.
type Result struct {
	score    float64
	opponent Rating
}

func Win(opponent Rating) Result  { return Result{score: 1, opponent: opponent} }
func Loss(opponent Rating) Result { return Result{score: 0, opponent: opponent} }
func Draw(opponent Rating) Result { return Result{score: 0.5, opponent: opponent} }

// Update applies a single-game Glicko2 rating period to r.
func Update(r Rating, result Result) Rating {
	gVal := g(result.opponent.Deviation)
	eVal := e(r.Value, result.opponent.Value, result.opponent.Deviation)

	v := 1.0 / (gVal * gVal * eVal * (1 - eVal))
	delta := v * gVal * (result.score - eVal)

	sigma := updateVolatility(r, v, delta)

	phiStar := math.Sqrt(r.Deviation*r.Deviation + sigma*sigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := r.Value + phiPrime*phiPrime*gVal*(result.score-eVal)

	return Rating{Value: muPrime, Deviation: phiPrime, Volatility: sigma}
}

// updateVolatility runs the Glicko2 volatility iteration (the "Illinois"
// variant of regula falsi).
func updateVolatility(r Rating, v, delta float64) float64 {
	phi := r.Deviation
	a := math.Log(r.Volatility * r.Volatility)

	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return (num / den) - ((x - a) / (tau * tau))
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		B = a - k*tau
	}

	fB := f(B)
	for i := 0; i < maxIterations; i++ {
		fA := f(A)
		if math.Abs(fA) < epsilon {
			break
		}
		prev := A
		A = prev - fA*(prev-B)/(fA-fB)
		fB = f(B)
		if math.Abs(A-B) < epsilon {
			break
		}
	}
	return math.Exp(A / 2)
}

// g is the G(phi) dampening factor.
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// e is the expected score of a player at mu against an opponent at mu2/phi2.
func e(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}
