package topk

import (
	"math"
	"sync"

	"github.com/hupe1980/vecmatch/matrix"
)

// Result holds, per query row, the retained candidates in ascending rank order.
type Result struct {
	Rows [][]Candidate
}

// Distances returns the raw distances as a [rows, k] matrix. Rows shorter
// than the widest row are padded with +Inf.
func (r Result) Distances() *matrix.Dense {
	return r.dense(func(c Candidate) float32 { return c.Distance })
}

// Scores returns the emitted scores as a [rows, k] matrix, padded with +Inf.
func (r Result) Scores() *matrix.Dense {
	return r.dense(func(c Candidate) float32 { return c.Score })
}

// Indices returns the target column indices per row.
func (r Result) Indices() [][]int {
	out := make([][]int, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = make([]int, len(row))
		for j, c := range row {
			out[i][j] = c.Index
		}
	}
	return out
}

func (r Result) dense(get func(Candidate) float32) *matrix.Dense {
	k := 0
	for _, row := range r.Rows {
		k = max(k, len(row))
	}
	m := matrix.NewDenseFill(len(r.Rows), k, float32(math.Inf(1)))
	for i, row := range r.Rows {
		for j, c := range row {
			m.Set(i, j, get(c))
		}
	}
	return m
}

// Select returns, for every row of d, the k smallest values and their column
// positions in ascending order. Ties are broken by lower column index.
// k is clamped to d.Cols.
func Select(d *matrix.Dense, k int) Result {
	k = min(k, d.Cols)
	res := Result{Rows: make([][]Candidate, d.Rows)}
	if k <= 0 {
		return res
	}
	q := newBoundedQueue(k)
	for i := 0; i < d.Rows; i++ {
		q.reset(k)
		for j, v := range d.Row(i) {
			q.push(Candidate{Index: j, Distance: v, Score: v})
		}
		res.Rows[i] = q.drainSorted(make([]Candidate, 0, k))
	}
	return res
}

// Accumulator keeps the running best-k candidates per query row across
// sequentially or concurrently streamed batches. Each row is guarded by its
// own lock so batches may be merged from several goroutines.
//
// Because ranking is a total order on (distance, index), the retained set
// does not depend on the order in which batches are merged.
type Accumulator struct {
	k      int
	queues []*boundedQueue
	mu     []sync.Mutex
	lo, hi []float32
}

// NewAccumulator creates an accumulator for rows query rows keeping k
// candidates each.
func NewAccumulator(rows, k int) *Accumulator {
	a := &Accumulator{
		k:      k,
		queues: make([]*boundedQueue, rows),
		mu:     make([]sync.Mutex, rows),
		lo:     make([]float32, rows),
		hi:     make([]float32, rows),
	}
	inf := float32(math.Inf(1))
	for i := range a.queues {
		a.queues[i] = newBoundedQueue(k)
		a.lo[i] = inf
		a.hi[i] = -inf
	}
	return a
}

// K returns the number of candidates retained per row.
func (a *Accumulator) K() int {
	return a.k
}

// Merge folds a batch-local result into the running state. Candidate
// indices must already be global target positions.
func (a *Accumulator) Merge(local Result) {
	for row, cands := range local.Rows {
		a.MergeRow(row, cands)
	}
}

// MergeRow folds candidates into a single row.
func (a *Accumulator) MergeRow(row int, cands []Candidate) {
	a.mu[row].Lock()
	defer a.mu[row].Unlock()
	q := a.queues[row]
	for _, c := range cands {
		q.push(c)
	}
}

// Observe widens the raw distance range seen for row.
func (a *Accumulator) Observe(row int, lo, hi float32) {
	a.mu[row].Lock()
	defer a.mu[row].Unlock()
	a.lo[row] = min(a.lo[row], lo)
	a.hi[row] = max(a.hi[row], hi)
}

// Bounds returns the raw distance range observed for row.
func (a *Accumulator) Bounds(row int) (lo, hi float32) {
	a.mu[row].Lock()
	defer a.mu[row].Unlock()
	return a.lo[row], a.hi[row]
}

// Result drains the accumulator into a sorted Result. The accumulator is
// empty afterwards.
func (a *Accumulator) Result() Result {
	res := Result{Rows: make([][]Candidate, len(a.queues))}
	for i, q := range a.queues {
		a.mu[i].Lock()
		res.Rows[i] = q.drainSorted(make([]Candidate, 0, q.len()))
		a.mu[i].Unlock()
	}
	return res
}
