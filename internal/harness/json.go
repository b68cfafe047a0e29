package harness

import (
	"encoding/json"
	"io"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// ParseJSON reads a ready-made case list. Cases pass through verbatim;
// units other than iter/sec are kept and surface later as unsupported or
// ambiguous cases rather than failing ingestion.
func ParseJSON(r io.Reader) ([]benchmark.Case, error) {
	var cases []benchmark.Case
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cases); err != nil {
		return nil, &ParseError{Tool: ToolJSON, Err: err}
	}
	return cases, nil
}
