package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

var csvHeader = []string{
	"group",
	"commit",
	"date",
	"tool",
	"case",
	"value",
	"unit",
	"ops_per_second",
	"mean_seconds",
	"stddev_seconds",
	"rounds",
	"error",
}

// WriteCSV writes one row per run and case, oldest run first. Normalized
// columns are empty when the case could not be normalized; the reason goes
// in the error column.
func WriteCSV(w io.Writer, group string, runs []benchmark.Run) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, run := range runs {
		date := time.UnixMilli(run.Date).UTC().Format(time.RFC3339)
		for _, res := range benchmark.NormalizeRun(run) {
			row := []string{
				group,
				run.Commit.ID,
				date,
				run.Tool,
				res.Case.Name,
				strconv.FormatFloat(res.Case.Value, 'g', -1, 64),
				res.Case.Unit,
				"", "", "", "", "",
			}
			if res.Err != nil {
				row[11] = res.Err.Error()
			} else {
				n := res.Normalized
				row[7] = strconv.FormatFloat(n.ValuePerSecond, 'g', -1, 64)
				row[8] = strconv.FormatFloat(n.MeanSeconds, 'g', -1, 64)
				if n.StddevSeconds != nil {
					row[9] = strconv.FormatFloat(*n.StddevSeconds, 'g', -1, 64)
				}
				row[10] = strconv.FormatUint(n.SampleRounds, 10)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
