package triangle

import (
	"math"
	"strconv"

	domainTriangle "gotriangle/domain/triangle"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// summarizeGroup computes the volume-weighted ratio, ratio dispersion and z-score outliers
// for every link ratio starting at one development month.
func summarizeGroup(group []domainTriangle.LinkRatio, threshold float64) (domainTriangle.DevStepSummary, []domainTriangle.OutlierRecord) {
	currents := make([]float64, len(group))
	nexts := make([]float64, len(group))
	ratios := make([]float64, len(group))
	for i, obs := range group {
		currents[i] = obs.Current
		nexts[i] = obs.Next
		ratios[i] = obs.Ratio
	}

	summary := domainTriangle.DevStepSummary{Count: len(group)}
	if vw, ok := volumeWeightedRatio(currents, nexts); ok {
		vw = round(vw, 4)
		summary.VolumeWeightedLinkRatio = &vw
	}

	m := momentsOf(ratios)
	summary.SimpleAverageLinkRatio = round(m.mean(), 4)
	summary.StdDevOfRatios = round(m.stdDev(), 4)

	var outliers []domainTriangle.OutlierRecord
	for _, obs := range group {
		z := m.zScore(obs.Ratio)
		if !isOutlier(z, threshold) {
			continue
		}
		summary.OutliersFound++
		outliers = append(outliers, domainTriangle.OutlierRecord{
			AccidentPeriod: obs.AccidentPeriod,
			DevMonthStart:  obs.DevMonth,
			LinkRatio:      round(obs.Ratio, 4),
			CurrentValue:   round(obs.Current, 2),
			NextValue:      round(obs.Next, 2),
			ZScore:         round(z, 2),
		})
	}
	return summary, outliers
}

// volumeWeightedRatio returns sum(next) / sum(current). ok is false when the
// denominator is zero or the quotient is not representable.
func volumeWeightedRatio(currents, nexts []float64) (float64, bool) {
	den, denExp := scaledSum(currents)
	if den == 0 {
		return 0, false
	}
	num, numExp := scaledSum(nexts)
	vw := math.Ldexp(num/den, numExp-denExp)
	if math.IsInf(vw, 0) || math.IsNaN(vw) {
		return 0, false
	}
	return vw, true
}

// scaledSum returns s and exp with sum(xs) == s * 2^exp, scaling only when the
// plain sum overflows.
func scaledSum(xs []float64) (float64, int) {
	if s := floats.Sum(xs); !math.IsInf(s, 0) {
		return s, 0
	}
	exp := scaleExponent(xs)
	return floats.Sum(scaled(xs, exp)), exp
}

// moments holds the mean and population std of ratios expressed in units of 2^exp
type moments struct {
	mean0 float64
	std0  float64
	exp   int
}

// momentsOf computes mean and population std, rescaling by a power of two when the
// ratios are large enough for the sums to overflow. A std of exactly zero becomes
// zeroStdEpsilon.
func momentsOf(ratios []float64) moments {
	mean, _ := stats.Mean(ratios)
	sigma, _ := stats.StandardDeviationPopulation(ratios)
	exp := 0
	if math.IsInf(mean, 0) || math.IsNaN(mean) || math.IsInf(sigma, 0) || math.IsNaN(sigma) {
		exp = scaleExponent(ratios)
		s := scaled(ratios, exp)
		mean, _ = stats.Mean(s)
		sigma, _ = stats.StandardDeviationPopulation(s)
	}
	if sigma == 0 {
		sigma = zeroStdEpsilon
	}
	return moments{mean0: mean, std0: sigma, exp: exp}
}

func (m moments) mean() float64   { return math.Ldexp(m.mean0, m.exp) }
func (m moments) stdDev() float64 { return math.Ldexp(m.std0, m.exp) }

func (m moments) zScore(ratio float64) float64 {
	return (math.Ldexp(ratio, -m.exp) - m.mean0) / m.std0
}

// scaleExponent is the binary exponent of the largest magnitude in xs
func scaleExponent(xs []float64) int {
	_, exp := math.Frexp(floats.Norm(xs, math.Inf(1)))
	return exp
}

func scaled(xs []float64, exp int) []float64 {
	dst := make([]float64, len(xs))
	floats.ScaleTo(dst, math.Ldexp(1, -exp), xs)
	return dst
}

// isOutlier applies the strict |z| > threshold rule
func isOutlier(z, threshold float64) bool {
	return math.Abs(z) > threshold
}

// round rounds the exact binary value to the given decimal places, ties to even
func round(v float64, places int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
