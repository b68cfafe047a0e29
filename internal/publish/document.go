// Package publish reads and writes the benchmark history artifact consumed by
// the chart renderer: a JavaScript file assigning one JSON object to
// window.BENCHMARK_DATA.
//
// The output is byte-compatible with JSON.stringify(data, null, 2) so
// existing dashboards keep working unmodified. Group order and run order are
// preserved exactly as read.
package publish

import "github.com/benchtrail/benchtrail/internal/benchmark"

// Group is one named benchmark feed.
type Group struct {
	Name string
	Runs []benchmark.Run
}

// Document is the decoded artifact. Groups keep their order of first
// appearance; new groups are added at the end.
type Document struct {
	LastUpdate int64
	RepoURL    string
	Groups     []Group
}

// Names returns the group names in document order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Groups))
	for i, g := range d.Groups {
		names[i] = g.Name
	}
	return names
}

// Runs returns the runs of a group without copying. Unknown groups return
// nil.
func (d *Document) Runs(name string) []benchmark.Run {
	if i := d.index(name); i >= 0 {
		return d.Groups[i].Runs
	}
	return nil
}

// Has reports whether the document contains the group.
func (d *Document) Has(name string) bool {
	return d.index(name) >= 0
}

// SetRuns replaces the runs of a group, adding the group if needed.
func (d *Document) SetRuns(name string, runs []benchmark.Run) {
	if i := d.index(name); i >= 0 {
		d.Groups[i].Runs = runs
		return
	}
	d.Groups = append(d.Groups, Group{Name: name, Runs: runs})
}

// MaxDate returns the latest run date across all groups and whether any run
// exists at all.
func (d *Document) MaxDate() (int64, bool) {
	var (
		latest int64
		found  bool
	)
	for _, g := range d.Groups {
		for _, r := range g.Runs {
			if !found || r.Date > latest {
				latest = r.Date
				found = true
			}
		}
	}
	return latest, found
}

// RefreshLastUpdate recomputes LastUpdate from the runs. A document without
// runs keeps its previous value.
func (d *Document) RefreshLastUpdate() {
	if latest, ok := d.MaxDate(); ok {
		d.LastUpdate = latest
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		LastUpdate: d.LastUpdate,
		RepoURL:    d.RepoURL,
		Groups:     make([]Group, len(d.Groups)),
	}
	for i, g := range d.Groups {
		out.Groups[i] = Group{Name: g.Name, Runs: benchmark.CloneRuns(g.Runs)}
	}
	return out
}

func (d *Document) index(name string) int {
	for i, g := range d.Groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}
