package report

import (
	"fmt"
	"os"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// MotionRow is one frame of the motion table written by the QC workflow.
type MotionRow struct {
	TimeS float64 `csv:"Time_s"`
	DxMM  float64 `csv:"Dx_mm"`
	DyMM  float64 `csv:"Dy_mm"`
	DzMM  float64 `csv:"Dz_mm"`
	RxRad float64 `csv:"Rx_rad"`
	RyRad float64 `csv:"Ry_rad"`
	RzRad float64 `csv:"Rz_rad"`
	FDMM  float64 `csv:"FD_mm"`
}

// MotionSummary describes framewise displacement over a run.
type MotionSummary struct {
	Frames    int
	MeanFD    float64
	MedianFD  float64
	MaxFD     float64
	P95FD     float64
	Threshold float64
	Over      int
}

// DefaultFDThreshold (mm) is the usual censoring cutoff.
const DefaultFDThreshold = 0.5

func ReadMotion(filename string) ([]MotionRow, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	rows := []MotionRow{}
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %v", filename, err))
	}

	return rows, nil
}

// SummarizeMotion computes FD statistics; frames with FD above threshold are
// counted in Over.
func SummarizeMotion(rows []MotionRow, threshold float64) (MotionSummary, error) {
	out := MotionSummary{Frames: len(rows), Threshold: threshold}
	if len(rows) == 0 {
		return out, fmt.Errorf("motion table has no frames")
	}

	fd := make(stats.Float64Data, 0, len(rows))
	for _, r := range rows {
		fd = append(fd, r.FDMM)
		if r.FDMM > threshold {
			out.Over++
		}
	}

	var err error
	if out.MeanFD, err = stats.Mean(fd); err != nil {
		return out, pfx.Err(err)
	}
	if out.MedianFD, err = stats.Median(fd); err != nil {
		return out, pfx.Err(err)
	}
	if out.MaxFD, err = stats.Max(fd); err != nil {
		return out, pfx.Err(err)
	}
	if out.P95FD, err = stats.Percentile(fd, 95); err != nil {
		return out, pfx.Err(err)
	}

	return out, nil
}
