package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// Prefix is the assignment that precedes the JSON body in data.js.
const Prefix = "window.BENCHMARK_DATA = "

// ErrSchema is matched by every SchemaError.
var ErrSchema = errors.New("artifact schema violation")

// SchemaError reports content that does not follow the artifact grammar.
type SchemaError struct {
	// Path locates the offending value, e.g. entries["Benchmark"][3].
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "invalid benchmark data"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Encode renders the document as data.js. LastUpdate is recomputed from the
// runs before rendering.
func Encode(doc *Document) ([]byte, error) {
	body, err := EncodeJSON(doc)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(Prefix)+len(body))
	out = append(out, Prefix...)
	return append(out, body...), nil
}

// EncodeJSON renders the document body without the assignment prefix, for
// consumers that read a plain JSON data file.
func EncodeJSON(doc *Document) ([]byte, error) {
	doc.RefreshLastUpdate()

	var buf bytes.Buffer
	buf.WriteString(`{"lastUpdate":`)
	if err := writeJSON(&buf, doc.LastUpdate); err != nil {
		return nil, err
	}
	buf.WriteString(`,"repoUrl":`)
	if err := writeJSON(&buf, doc.RepoURL); err != nil {
		return nil, err
	}
	buf.WriteString(`,"entries":{`)
	for i, g := range doc.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, g.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		runs := g.Runs
		if runs == nil {
			runs = []benchmark.Run{}
		}
		if err := writeJSON(&buf, runs); err != nil {
			return nil, fmt.Errorf("failed to encode group %q: %w", g.Name, err)
		}
	}
	buf.WriteString(`}}`)

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent benchmark data: %w", err)
	}
	return out.Bytes(), nil
}

// writeJSON appends compact JSON for v without HTML escaping and without the
// trailing newline json.Encoder adds.
func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Decode parses data.js content, or the same object as bare JSON. Every run
// is validated and every group must be ordered by date.
func Decode(data []byte) (*Document, error) {
	body := stripPrefix(data)
	if len(body) == 0 {
		return nil, &SchemaError{Reason: "empty content"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, &SchemaError{Reason: "not a JSON object", Err: err}
	}
	for key := range top {
		switch key {
		case "lastUpdate", "repoUrl", "entries":
		default:
			return nil, &SchemaError{Path: key, Reason: "unknown key"}
		}
	}

	doc := &Document{}
	if err := decodeField(top, "lastUpdate", &doc.LastUpdate); err != nil {
		return nil, err
	}
	if err := decodeField(top, "repoUrl", &doc.RepoURL); err != nil {
		return nil, err
	}
	raw, ok := top["entries"]
	if !ok {
		return nil, &SchemaError{Path: "entries", Reason: "missing"}
	}
	groups, err := decodeEntries(raw)
	if err != nil {
		return nil, err
	}
	doc.Groups = groups
	return doc, nil
}

func decodeField(top map[string]json.RawMessage, key string, dst any) error {
	raw, ok := top[key]
	if !ok {
		return &SchemaError{Path: key, Reason: "missing"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &SchemaError{Path: key, Err: err}
	}
	return nil
}

// decodeEntries walks the entries object token by token so group order
// survives decoding.
func decodeEntries(raw json.RawMessage) ([]Group, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return nil, &SchemaError{Path: "entries", Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &SchemaError{Path: "entries", Reason: "must be an object"}
	}

	groups := []Group{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &SchemaError{Path: "entries", Err: err}
		}
		name := tok.(string)
		path := fmt.Sprintf("entries[%q]", name)
		if _, dup := seen[name]; dup {
			return nil, &SchemaError{Path: path, Reason: "duplicate group"}
		}
		seen[name] = struct{}{}

		var group json.RawMessage
		if err := dec.Decode(&group); err != nil {
			return nil, &SchemaError{Path: path, Err: err}
		}
		runs, err := decodeRuns(path, group)
		if err != nil {
			return nil, err
		}
		if err := checkGroup(path, runs); err != nil {
			return nil, err
		}
		groups = append(groups, Group{Name: name, Runs: runs})
	}
	if _, err := dec.Token(); err != nil {
		return nil, &SchemaError{Path: "entries", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &SchemaError{Path: "entries", Reason: "trailing data"}
	}
	return groups, nil
}

// requiredCaseKeys must be present on every stored case. A missing value
// or unit would otherwise decode as zero and pass for a real measurement.
var requiredCaseKeys = []string{"name", "value", "unit"}

func decodeRuns(path string, raw json.RawMessage) ([]benchmark.Run, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var runs []benchmark.Run
	if err := dec.Decode(&runs); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	if runs == nil {
		return nil, &SchemaError{Path: path, Reason: "must be an array"}
	}

	var shapes []struct {
		Benches []map[string]json.RawMessage `json:"benches"`
	}
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}
	for i, shape := range shapes {
		for j, c := range shape.Benches {
			for _, key := range requiredCaseKeys {
				if _, ok := c[key]; !ok {
					return nil, &SchemaError{
						Path:   fmt.Sprintf("%s[%d].benches[%d].%s", path, i, j, key),
						Reason: "missing",
					}
				}
			}
		}
	}
	return runs, nil
}

func checkGroup(path string, runs []benchmark.Run) error {
	for i := range runs {
		runPath := fmt.Sprintf("%s[%d]", path, i)
		if runs[i].Benches == nil {
			return &SchemaError{Path: runPath + ".benches", Reason: "missing"}
		}
		if err := runs[i].Validate(); err != nil {
			return &SchemaError{Path: runPath, Err: err}
		}
		if i > 0 && runs[i].Date < runs[i-1].Date {
			return &SchemaError{
				Path:   runPath,
				Reason: fmt.Sprintf("date %d is earlier than preceding run date %d", runs[i].Date, runs[i-1].Date),
			}
		}
	}
	return nil
}

// stripPrefix removes the window.BENCHMARK_DATA assignment and an optional
// trailing semicolon.
func stripPrefix(data []byte) []byte {
	body := bytes.TrimSpace(data)
	if rest, ok := bytes.CutPrefix(body, []byte("window.BENCHMARK_DATA")); ok {
		rest = bytes.TrimSpace(rest)
		rest, _ = bytes.CutPrefix(rest, []byte("="))
		body = bytes.TrimSpace(rest)
	}
	body = bytes.TrimSuffix(body, []byte(";"))
	return bytes.TrimSpace(body)
}
