// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package afg3021b

import (
	"fmt"
	"math"
)

// Output limits of the AFG3021B into a high impedance load.
const (
	MinAmplitude = 10e-3 // Vpp
	MaxPeakVolts = 5.0   // |amplitude/2| + |offset|
	MinFrequency = 1e-6  // Hz
	MaxFrequency = 25e6  // Hz, sine
)

const (
	// InstrumentID must appear in the `*IDN?` reply.
	InstrumentID = "TEKTRONIX,AFG3021B"

	// DefaultAddress is the generator's factory GPIB address.
	DefaultAddress = 11
)

// Parameter names an instrument setting.
type Parameter string

// Settings that can be clamped.
const (
	Amplitude Parameter = "amplitude"
	Offset    Parameter = "offset"
	Frequency Parameter = "frequency"
)

// Warning describes a requested value that was replaced by the nearest value
// the instrument accepts. Clamping is not an error; the write goes ahead with
// Applied.
type Warning struct {
	Parameter Parameter
	Requested float64
	Applied   float64
	Reason    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %g clamped to %g: %s", w.Parameter, w.Requested, w.Applied, w.Reason)
}

// WarningHandler receives each clamp warning as it happens.
type WarningHandler func(Warning)

// ClampAmplitude applies the amplitude limits given the instrument's present
// offset. The minimum is applied first, then the peak window, and each step
// that changes the value adds a Warning.
//
// An offset beyond ±5 V yields a negative amplitude; it is passed on as is
// and the instrument rejects it.
func ClampAmplitude(amplitude, offset float64) (float64, []Warning) {
	var warnings []Warning
	requested := amplitude
	if amplitude < MinAmplitude {
		amplitude = MinAmplitude
		warnings = append(warnings, Warning{
			Parameter: Amplitude,
			Requested: requested,
			Applied:   amplitude,
			Reason:    "the minimum peak to peak amplitude is 10 mV",
		})
	}
	if math.Abs(amplitude/2)+math.Abs(offset) > MaxPeakVolts {
		amplitude = 2 * (MaxPeakVolts - math.Abs(offset))
		warnings = append(warnings, Warning{
			Parameter: Amplitude,
			Requested: requested,
			Applied:   amplitude,
			Reason:    "the offset plus peak amplitude cannot exceed +/-5 V",
		})
	}
	return amplitude, warnings
}

// ClampOffset applies the peak window to offset given the instrument's
// present amplitude.
func ClampOffset(offset, amplitude float64) (float64, []Warning) {
	if math.Abs(amplitude/2)+math.Abs(offset) <= MaxPeakVolts {
		return offset, nil
	}
	requested := offset
	if offset > 0 {
		offset = MaxPeakVolts - amplitude/2
	} else {
		offset = amplitude/2 - MaxPeakVolts
	}
	return offset, []Warning{{
		Parameter: Offset,
		Requested: requested,
		Applied:   offset,
		Reason:    "the offset plus peak amplitude cannot exceed +/-5 V",
	}}
}

// ClampFrequency limits frequency to [MinFrequency, MaxFrequency].
func ClampFrequency(frequency float64) (float64, []Warning) {
	switch {
	case frequency < MinFrequency:
		return MinFrequency, []Warning{{
			Parameter: Frequency,
			Requested: frequency,
			Applied:   MinFrequency,
			Reason:    "the minimum sinusoidal frequency is 1 uHz",
		}}
	case frequency > MaxFrequency:
		return MaxFrequency, []Warning{{
			Parameter: Frequency,
			Requested: frequency,
			Applied:   MaxFrequency,
			Reason:    "the maximum sinusoidal frequency is 25 MHz",
		}}
	}
	return frequency, nil
}
