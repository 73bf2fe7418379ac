package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minutesPerDegree = 60
	secondsPerMinute = 60
	secondsPerDegree = minutesPerDegree * secondsPerMinute
	secondsPrecision = 100
)

// Sexagesimal is a decimal-degree coordinate split in degrees, minutes and seconds.
// Degrees carries the sign when it is not zero; Negative records it for values in (-1, 0).
type Sexagesimal struct {
	Degrees  int     // Degrees is the truncated integer part of the coordinate.
	Minutes  int     // Minutes is in [0, 59].
	Seconds  float64 // Seconds is in [0, 60), rounded to 2 decimals.
	Negative bool    // Negative is true for coordinates below zero.
}

// ToSexagesimal converts a decimal-degree value into degrees, minutes and seconds.
func ToSexagesimal(decimal float64) Sexagesimal {
	intPart, fracPart := math.Modf(decimal)
	minutes, minFrac := math.Modf(fracPart * minutesPerDegree)

	s := Sexagesimal{
		Degrees:  int(intPart),
		Minutes:  int(math.Abs(minutes)),
		Seconds:  math.Abs(math.Round(minFrac*secondsPerMinute*secondsPrecision) / secondsPrecision),
		Negative: decimal < 0,
	}

	// rounding may push the seconds to a whole minute
	if s.Seconds >= secondsPerMinute {
		s.Seconds -= secondsPerMinute
		s.Minutes++
	}
	if s.Minutes >= minutesPerDegree {
		s.Minutes -= minutesPerDegree
		if s.Negative {
			s.Degrees--
		} else {
			s.Degrees++
		}
	}

	return s
}

// Decimal reconstructs the decimal-degree value.
func (s Sexagesimal) Decimal() float64 {
	return s.TotalSeconds() / secondsPerDegree
}

// TotalSeconds returns the signed coordinate expressed in arc seconds.
func (s Sexagesimal) TotalSeconds() float64 {
	abs := float64(absInt(s.Degrees))*secondsPerDegree + float64(s.Minutes)*secondsPerMinute + s.Seconds
	if s.Negative {
		return -abs
	}
	return abs
}

// String formats the angle as 42°53'2.0".
func (s Sexagesimal) String() string {
	sign := ""
	if s.Negative && s.Degrees == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d°%d'%s\"", sign, s.Degrees, s.Minutes, formatSeconds(s.Seconds))
}

// FormatPoint returns a point as [lat, long] in sexagesimal notation, e.g. [42°53'2.0", 12°50'56.0"].
func FormatPoint(p Point) string {
	return fmt.Sprintf("[%s, %s]", ToSexagesimal(p.Latitude), ToSexagesimal(p.Longitude))
}

// FormatCoord formats a coordinate delta omitting zero components, e.g. 4' 27.36".
func FormatCoord(decimal float64) string {
	s := ToSexagesimal(decimal)

	var parts []string
	if s.Degrees != 0 {
		parts = append(parts, fmt.Sprintf("%d°", s.Degrees))
	}
	if s.Minutes != 0 {
		parts = append(parts, fmt.Sprintf("%d'", s.Minutes))
	}
	if s.Seconds != 0 {
		parts = append(parts, formatSeconds(s.Seconds)+"\"")
	}
	if len(parts) == 0 {
		return "0\""
	}
	if s.Negative && s.Degrees == 0 {
		parts[0] = "-" + parts[0]
	}

	return strings.Join(parts, " ")
}

func formatSeconds(sec float64) string {
	out := strconv.FormatFloat(sec, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
