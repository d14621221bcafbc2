// SPDX-License-Identifier: EPL-2.0

package audio

import "time"

// Wrap composes the tap chain in its fixed order:
//
//	src → GainStage → AnalyzerTap → VisualizerTap
//
// A nil gain, analyzer or visualizer leaves that stage out. The gain stage
// starts at unity until the shared gain holds a measurement.
func Wrap(src Source, gain *Gain, analyzer *AnalyzerFeed, viz *VisualizerFeed) Source {
	return WrapWithRamp(src, gain, analyzer, viz, DefaultRampDuration)
}

// WrapWithRamp is Wrap with an explicit gain ramp duration.
func WrapWithRamp(src Source, gain *Gain, analyzer *AnalyzerFeed, viz *VisualizerFeed, ramp time.Duration) Source {
	out := src
	if gain != nil {
		out = NewGainStage(out, gain, 1.0, ramp)
	}
	if analyzer != nil {
		out = NewAnalyzerTap(out, analyzer)
	}
	if viz != nil {
		out = NewVisualizerTap(out, viz)
	}

	return out
}
