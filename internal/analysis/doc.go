// Package analysis measures a recorded response: its natural frequency
// from the spectrum and its damping ratio from the logarithmic decrement of
// successive peaks.
//
//	resp, err := analysis.Analyze(rec.Times(), rec.Coordinate(0))
//	if err == nil {
//	    fmt.Println(resp.NaturalFrequency, resp.DampingRatio)
//	}
//
// Values are displacements about the equilibrium and must be sampled at a
// uniform interval, which is what a reporter produces.
package analysis
