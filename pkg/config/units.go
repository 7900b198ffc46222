package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Common durations.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Survey units in meters. The US survey foot is 1200/3937 m.
const (
	Millimeter = 0.001
	Centimeter = 0.01
	Kilometer  = 1000.0
	Foot       = 0.3048
	SurveyFoot = 1200.0 / 3937.0
	Inch       = 0.0254
)

type unit[T any] struct {
	suffix string
	scale  T
}

// Suffixes are matched longest first so "ms" never parses as "m" + "s".
var durationUnits = []unit[time.Duration]{
	{"ns", time.Nanosecond}, {"us", time.Microsecond}, {"µs", time.Microsecond},
	{"ms", time.Millisecond}, {"s", time.Second}, {"m", time.Minute},
	{"h", time.Hour}, {"d", Day}, {"w", Week},
}

var distanceUnits = []unit[float64]{
	{"usft", SurveyFoot}, {"mm", Millimeter}, {"cm", Centimeter}, {"km", Kilometer},
	{"ft", Foot}, {"in", Inch}, {"m", 1},
}

var durationPartRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)([a-zµ]+)`)

// Duration wraps time.Duration so YAML accepts days and weeks ("30d", "1w2d").
type Duration time.Duration

// ParseDuration parses a Go duration or a sequence of number+unit parts that
// may include d (day) and w (week).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var total time.Duration
	for rest := s; rest != ""; {
		m := durationPartRe.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		scale, ok := lookup(durationUnits, m[2])
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, m[2])
		}
		total += time.Duration(val * float64(scale))
		rest = rest[len(m[0]):]
	}
	return total, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML writes whole days as "Nd" and everything else in Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	td := time.Duration(d)
	if td >= Day && td%Day == 0 {
		return fmt.Sprintf("%dd", td/Day), nil
	}
	return td.String(), nil
}

// Distance is a length in meters. YAML accepts mm, cm, m, km, ft, usft and in.
type Distance float64

// ParseDistance parses a number with an optional unit suffix into meters.
// Unitless values are meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	num, scale := s, 1.0
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			num, scale = strings.TrimSuffix(s, u.suffix), u.scale
			break
		}
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	return val * scale, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Bare numbers are meters.
func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if value.Tag == "!!int" || value.Tag == "!!float" {
		if err := value.Decode(&f); err != nil {
			return err
		}
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dist, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(dist)
	return nil
}

// MarshalYAML writes sub-meter distances in cm (or mm below 1 cm) so stake-out
// tolerances stay readable.
func (d Distance) MarshalYAML() (interface{}, error) {
	m := float64(d)
	switch abs := math.Abs(m); {
	case abs == 0:
		return "0m", nil
	case abs < Centimeter:
		return fmt.Sprintf("%gmm", round(m/Millimeter, 3)), nil
	case abs < 1:
		return fmt.Sprintf("%gcm", round(m/Centimeter, 3)), nil
	case abs >= 10*Kilometer:
		return fmt.Sprintf("%gkm", round(m/Kilometer, 3)), nil
	}
	return fmt.Sprintf("%gm", round(m, 3)), nil
}

func lookup[T any](units []unit[T], suffix string) (T, bool) {
	for _, u := range units {
		if u.suffix == suffix {
			return u.scale, true
		}
	}
	var zero T
	return zero, false
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
