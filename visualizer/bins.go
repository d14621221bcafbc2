// SPDX-License-Identifier: EPL-2.0

package visualizer

import "math"

// NumEnergyBands is the number of coarse bands reported in Frame.Energy.
const NumEnergyBands = 5

// energyBands are sub-bass, bass, mids, presence and air, in Hz.
var energyBands = [NumEnergyBands][2]float64{
	{20, 60},
	{60, 250},
	{250, 2000},
	{2000, 6000},
	{6000, 20000},
}

// BarEdges returns numBars+1 frequencies forming a geometric series from
// minFreq to sampleRate/2.
func BarEdges(sampleRate, numBars int, minFreq float64) []float64 {
	nyquist := float64(sampleRate) / 2
	edges := make([]float64, numBars+1)

	lo, hi := math.Log(minFreq), math.Log(nyquist)
	for i := range edges {
		edges[i] = math.Exp(lo + (hi-lo)*float64(i)/float64(numBars))
	}
	edges[0], edges[numBars] = minFreq, nyquist

	return edges
}

// binRange maps [lo, hi) Hz onto FFT bin indices for a transform of size
// n. A range narrower than one bin collapses to the bin nearest its
// geometric centre so low bars are never empty.
func binRange(lo, hi, binHz float64, n int) (first, last int) {
	first = int(math.Ceil(lo / binHz))
	last = int(math.Ceil(hi/binHz)) - 1

	if last < first {
		c := int(math.Round(math.Sqrt(lo*hi) / binHz))
		first, last = c, c
	}

	first = max(first, 1)
	last = min(last, n/2)

	return first, last
}

// bassWeight tilts the bars towards the low end.
func bassWeight(freq float64) float64 {
	switch {
	case freq < 200:
		return 1.5
	case freq < 2000:
		return 1.0
	default:
		return 0.8
	}
}
