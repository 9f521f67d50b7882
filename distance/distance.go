package distance

import (
	"fmt"
	"math"
	"strings"
)

// Func scores how far apart two feature vectors of equal length are.
type Func func(a, b []float32) float32

// SquaredL2 is the squared Euclidean distance. b must be at least as long as a.
func SquaredL2(a, b []float32) float32 {
	b = b[:len(a)]
	var acc [4]float32
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		for j := range acc {
			d := a[i+j] - b[i+j]
			acc[j] += d * d
		}
	}
	for i := n; i < len(a); i++ {
		d := a[i] - b[i]
		acc[0] += d * d
	}
	return acc[0] + acc[1] + acc[2] + acc[3]
}

// Dot is the inner product. b must be at least as long as a.
func Dot(a, b []float32) float32 {
	b = b[:len(a)]
	var acc [4]float32
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		for j := range acc {
			acc[j] += a[i+j] * b[i+j]
		}
	}
	for i := n; i < len(a); i++ {
		acc[0] += a[i] * b[i]
	}
	return acc[0] + acc[1] + acc[2] + acc[3]
}

// Cosine is 1 - cos(a, b). A zero vector is at distance 1 from everything.
func Cosine(a, b []float32) float32 {
	aa, bb := Dot(a, a), Dot(b, b)
	if aa == 0 || bb == 0 {
		return 1
	}
	return 1 - Dot(a, b)/float32(math.Sqrt(float64(aa)*float64(bb)))
}

// Metric selects the distance used by an index. The numeric value is
// persisted in snapshot headers and must not be renumbered.
type Metric uint8

const (
	MetricL2 Metric = iota
	MetricCosine
)

var metricNames = [...]string{MetricL2: "l2", MetricCosine: "cosine"}

func (m Metric) String() string {
	if int(m) < len(metricNames) {
		return metricNames[m]
	}
	return fmt.Sprintf("metric(%d)", uint8(m))
}

// Func returns the distance function of m.
func (m Metric) Func() (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return Cosine, nil
	}
	return nil, fmt.Errorf("distance: unsupported %v", m)
}

// ParseMetric reads a configured metric name. The empty string means l2.
func ParseMetric(s string) (Metric, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "", "euclidean", "squared_l2":
		return MetricL2, nil
	default:
		for m, n := range metricNames {
			if n == name {
				return Metric(m), nil
			}
		}
	}
	return 0, fmt.Errorf("distance: unknown metric %q", s)
}
