package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
)

// PlotFD renders framewise displacement per frame as a PNG, with the
// censoring threshold drawn as a flat line.
func PlotFD(filename string, rows []MotionRow, threshold float64) error {
	if len(rows) < 2 {
		return fmt.Errorf("need at least 2 frames to plot, have %d", len(rows))
	}

	xs := make([]float64, len(rows))
	fd := make([]float64, len(rows))
	limit := make([]float64, len(rows))
	yMax := threshold
	for i, r := range rows {
		xs[i] = float64(i)
		fd[i] = r.FDMM
		limit[i] = threshold
		if r.FDMM > yMax {
			yMax = r.FDMM
		}
	}
	if yMax <= 0 {
		yMax = 1
	}

	graph := chart.Chart{
		Width:  768,
		Height: 256,
		XAxis: chart.XAxis{
			Name: "Frame",
		},
		YAxis: chart.YAxis{
			Name:  "FD (mm)",
			Range: &chart.ContinuousRange{Min: 0, Max: 1.1 * yMax},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "FD",
				XValues: xs,
				YValues: fd,
			},
			chart.ContinuousSeries{
				Name:    "Threshold",
				XValues: xs,
				YValues: limit,
				Style: chart.Style{
					StrokeColor:     chart.ColorRed,
					StrokeDashArray: []float64{4, 4},
				},
			},
		},
	}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.WriteFile(filename, buffer.Bytes(), 0o644))
}
