package model

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// SparseVector is a sparse embedding. Indices are strictly increasing and
// smaller than Dim.
type SparseVector struct {
	Dim     int       `json:"dim" yaml:"dim"`
	Indices []int     `json:"indices" yaml:"indices"`
	Values  []float32 `json:"values" yaml:"values"`
}

// Clone returns a deep copy of v.
func (v *SparseVector) Clone() *SparseVector {
	if v == nil {
		return nil
	}
	return &SparseVector{
		Dim:     v.Dim,
		Indices: slices.Clone(v.Indices),
		Values:  slices.Clone(v.Values),
	}
}

// Record is an identified item with an optional embedding and a ranked list
// of matches.
type Record struct {
	ID        string         `json:"id" yaml:"id"`
	Embedding []float32      `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Sparse    *SparseVector  `json:"sparse,omitempty" yaml:"sparse,omitempty"`
	Tags      map[string]any `json:"tags,omitempty" yaml:"tags,omitempty"`
	Matches   []Match        `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Match references a target record together with its scores keyed by
// metric name.
type Match struct {
	Record *Record            `json:"record" yaml:"record"`
	Scores map[string]float32 `json:"scores" yaml:"scores"`
}

// Score returns the score recorded under metric.
func (m Match) Score(metric string) (float32, bool) {
	s, ok := m.Scores[metric]
	return s, ok
}

// NewRecord creates a record with the given embedding. An empty id is
// replaced by a random UUID.
func NewRecord(id string, embedding []float32) *Record {
	if id == "" {
		id = uuid.NewString()
	}
	return &Record{ID: id, Embedding: embedding}
}

// Stub returns an id-only stand-in for the record with the given id.
func Stub(id string) *Record {
	return &Record{ID: id}
}

// Detach returns an independent copy of r without matches. The copy shares
// no mutable state with r.
func (r *Record) Detach() *Record {
	return &Record{
		ID:        r.ID,
		Embedding: slices.Clone(r.Embedding),
		Sparse:    r.Sparse.Clone(),
		Tags:      maps.Clone(r.Tags),
	}
}

// ClearMatches empties the match list, keeping its capacity.
func (r *Record) ClearMatches() {
	clear(r.Matches)
	r.Matches = r.Matches[:0]
}

// AppendMatch appends a match to target with a single metric score.
func (r *Record) AppendMatch(target *Record, metric string, score float32) {
	r.Matches = append(r.Matches, Match{
		Record: target,
		Scores: map[string]float32{metric: score},
	})
}

// MatchIDs returns the ids of the matched records in rank order.
func (r *Record) MatchIDs() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.Record.ID
	}
	return ids
}
