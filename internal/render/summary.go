package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.trace/internal/tracestore"
)

// AxisSummary describes one position series in millimetres.
type AxisSummary struct {
	Min, Max   float64
	Mean       float64
	StdDev     float64
	PeakToPeak float64
}

// Summary describes a trace.
type Summary struct {
	Count    int
	Start    float64 // time of the first record [s]
	Duration float64 // time between the first and last record [s]
	X, Y     AxisSummary
	// Period is the mean interval between upward crossings of the mean x,
	// or 0 when fewer than two crossings were seen.
	Period    float64
	Crossings int
}

// Summarize computes per-axis statistics and the oscillation period of a
// trace. Records are expected in time order.
func Summarize(records []tracestore.Record) Summary {
	s := Summary{Count: len(records)}
	if len(records) == 0 {
		return s
	}
	t := make([]float64, len(records))
	x := make([]float64, len(records))
	y := make([]float64, len(records))
	for i, r := range records {
		t[i], x[i], y[i] = r.TimeS, r.XMM, r.YMM
	}
	s.Start = t[0]
	s.Duration = t[len(t)-1] - t[0]
	s.X = summarizeAxis(x)
	s.Y = summarizeAxis(y)

	crossings := upwardCrossings(t, x, s.X.Mean)
	s.Crossings = len(crossings)
	if len(crossings) >= 2 {
		s.Period = (crossings[len(crossings)-1] - crossings[0]) / float64(len(crossings)-1)
	}
	return s
}

func summarizeAxis(v []float64) AxisSummary {
	a := AxisSummary{
		Min:  floats.Min(v),
		Max:  floats.Max(v),
		Mean: stat.Mean(v, nil),
	}
	a.PeakToPeak = a.Max - a.Min
	if len(v) > 1 {
		a.StdDev = stat.StdDev(v, nil)
	}
	return a
}

// upwardCrossings returns the linearly interpolated times at which v rises
// through level.
func upwardCrossings(t, v []float64, level float64) []float64 {
	var out []float64
	for i := 1; i < len(v); i++ {
		d0, d1 := v[i-1]-level, v[i]-level
		if d0 < 0 && d1 >= 0 {
			out = append(out, t[i-1]+(t[i]-t[i-1])*(-d0)/(d1-d0))
		}
	}
	return out
}

// Print writes s as an aligned table.
func (s Summary) Print(w io.Writer, key string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", key)
	fmt.Fprintf(tw, "records\t%d\n", s.Count)
	if s.Count > 0 {
		fmt.Fprintf(tw, "duration\t%.4f s (from %.4f s)\n", s.Duration, s.Start)
		fmt.Fprintf(tw, "axis\tmin [mm]\tmax [mm]\tmean [mm]\tstd dev [mm]\tpeak-to-peak [mm]\n")
		for _, a := range []struct {
			name string
			v    AxisSummary
		}{{"x", s.X}, {"y", s.Y}} {
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n", a.name, a.v.Min, a.v.Max, a.v.Mean, a.v.StdDev, a.v.PeakToPeak)
		}
		if s.Period > 0 {
			fmt.Fprintf(tw, "period\t%.4f s (%d crossings)\n", s.Period, s.Crossings)
		} else {
			fmt.Fprintf(tw, "period\tn/a\n")
		}
	}
	return tw.Flush()
}
