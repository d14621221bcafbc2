// SPDX-License-Identifier: EPL-2.0

// Package utils holds small sample-format helpers shared by the decoders
// and the output sinks.
package utils

// FullScale returns the magnitude of the most negative integer sample
// representable at bitDepth. Unknown depths fall back to 16-bit.
func FullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// IntToFloat32 normalizes a signed integer PCM sample into [-1, 1).
func IntToFloat32(v int, bitDepth int) float32 {
	return float32(v) / FullScale(bitDepth)
}

// Float32ToInt converts x to a signed integer sample at bitDepth.
// Input is clamped to [-1, 1]; +1 maps to the positive maximum.
func Float32ToInt(x float32, bitDepth int) int {
	fs := FullScale(bitDepth)
	if x >= 1 {
		return int(fs) - 1
	}
	if x <= -1 {
		return -int(fs)
	}

	v := x * fs
	if v > fs-1 {
		v = fs - 1
	}

	return int(v)
}

func Float32ToInt16(x float32) int16 {
	return int16(Float32ToInt(x, 16))
}
