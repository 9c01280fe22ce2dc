package domain

import (
	"math"
	"strconv"
	"strings"
)

// DefaultSpeedThreshold is the congestion cutoff in mph.
const DefaultSpeedThreshold = 20.0

// DefaultMaxValidSpeed bounds plausible loop-detector readings in mph.
const DefaultMaxValidSpeed = 150.0

// CongestionFlag is the classification of one reading. NoFlag marks a
// missing reading, which is neither congested nor free-flowing.
type CongestionFlag int8

const (
	NoFlag CongestionFlag = iota
	FreeFlow
	Congested
)

func (f CongestionFlag) String() string {
	switch f {
	case FreeFlow:
		return "free_flow"
	case Congested:
		return "congested"
	default:
		return "none"
	}
}

// Classify flags speed as congested iff it is strictly below threshold.
// A NaN speed yields NoFlag.
func Classify(speed, threshold float64) CongestionFlag {
	if math.IsNaN(speed) {
		return NoFlag
	}
	if speed < threshold {
		return Congested
	}
	return FreeFlow
}

// Rule bundles the congestion threshold with the validity limits applied to
// raw readings.
type Rule struct {
	Threshold     float64
	MaxSpeed      float64
	ZeroIsMissing bool
}

// DefaultRule returns the rule used by the reference analysis.
func DefaultRule() Rule {
	return Rule{Threshold: DefaultSpeedThreshold, MaxSpeed: DefaultMaxValidSpeed}
}

// Sanitize returns speed unchanged when it is a plausible reading and NaN
// otherwise: negative, infinite, above MaxSpeed, or zero under ZeroIsMissing.
// A MaxSpeed of 0 disables the upper bound.
func (r Rule) Sanitize(speed float64) float64 {
	switch {
	case math.IsNaN(speed), math.IsInf(speed, 0), speed < 0:
		return math.NaN()
	case r.MaxSpeed > 0 && speed > r.MaxSpeed:
		return math.NaN()
	case r.ZeroIsMissing && speed == 0:
		return math.NaN()
	}
	return speed
}

// Classify sanitizes speed and classifies it against the rule's threshold.
func (r Rule) Classify(speed float64) CongestionFlag {
	return Classify(r.Sanitize(speed), r.Threshold)
}

// ParseSpeed converts a raw table cell into a speed. Empty and non-numeric
// cells become NaN; the value is then passed through Sanitize.
func (r Rule) ParseSpeed(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return r.Sanitize(v)
}
