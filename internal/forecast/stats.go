package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BaseLead is the lead the others are tested against.
const BaseLead = 1

// Significance is the p-value below which a difference counts.
const Significance = 0.05

// TTest is a paired t-test of the absolute errors of one lead against
// BaseLead over the days both have.
type TTest struct {
	Measure     Measure
	Lead        int
	N           int
	MeanErr     float64
	MeanBaseErr float64
	T           float64
	P           float64
	Enough      bool
	Significant bool
}

// AbsError is |predicted - actual|, NaN when either is missing.
func AbsError(c Comparison, m Measure, lead int) float64 {
	return math.Abs(c.Predicted(m, lead) - c.Actual(m))
}

// PairedStats runs the t-tests of leads 2 to MaxLead against BaseLead for both
// measures, leaving out the excluded locations.
func PairedStats(rows []Comparison, exclude []string) []TTest {
	skip := make(map[string]bool, len(exclude))
	for _, loc := range exclude {
		skip[loc] = true
	}

	var out []TTest
	for _, m := range []Measure{Max, Min} {
		for lead := BaseLead + 1; lead <= MaxLead; lead++ {
			var base, cmp []float64
			for _, c := range rows {
				if skip[c.Location] {
					continue
				}
				b, e := AbsError(c, m, BaseLead), AbsError(c, m, lead)
				if math.IsNaN(b) || math.IsNaN(e) {
					continue
				}
				base = append(base, b)
				cmp = append(cmp, e)
			}
			out = append(out, pairedTTest(m, lead, cmp, base))
		}
	}
	return out
}

func pairedTTest(m Measure, lead int, cmp, base []float64) TTest {
	r := TTest{Measure: m, Lead: lead, N: len(cmp), T: math.NaN(), P: math.NaN()}
	if r.N < 2 {
		return r
	}
	r.Enough = true
	r.MeanErr = stat.Mean(cmp, nil)
	r.MeanBaseErr = stat.Mean(base, nil)

	diff := make([]float64, r.N)
	for i := range diff {
		diff[i] = cmp[i] - base[i]
	}
	mean, sd := stat.MeanStdDev(diff, nil)
	if sd == 0 {
		// constant differences: no spread to test against
		if mean != 0 {
			r.T = math.Copysign(math.Inf(1), mean)
			r.P = 0
			r.Significant = true
		}
		return r
	}
	r.T = mean / (sd / math.Sqrt(float64(r.N)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(r.N - 1)}
	r.P = 2 * dist.Survival(math.Abs(r.T))
	r.Significant = r.P < Significance
	return r
}
