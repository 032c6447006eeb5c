// Package assemble turns ranked candidate positions into match lists on
// source records.
package assemble

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/internal/conv"
	"github.com/hupe1980/vecmatch/internal/topk"
	"github.com/hupe1980/vecmatch/model"
)

// Options configures Assemble.
type Options struct {
	// Metric is the key under which scores are stored.
	Metric string
	// Limit is the maximum number of matches per source record.
	Limit int
	// ExcludeSelf drops candidates whose id equals the source record's id.
	ExcludeSelf bool
	// OnlyID attaches id-only stand-ins instead of hydrated records.
	OnlyID bool
}

// Stats describes one assembly.
type Stats struct {
	// Targets is the number of distinct target positions among candidates.
	Targets uint64
	// Shared is the number of those whose id also occurs in the source.
	Shared uint64
	// Matches is the total number of attached matches.
	Matches int
}

// Assemble rebuilds the match list of every source record from res, whose
// rows are aligned with source positions and ranked ascending.
//
// All target ids and records are resolved before the first source record is
// modified, so a failing target leaves the source untouched.
func Assemble(ctx context.Context, source *collection.Array, target collection.Collection, res topk.Result, opts Options) (Stats, error) {
	if len(res.Rows) != source.Len() {
		return Stats{}, fmt.Errorf("assemble: %d result rows for %d source records", len(res.Rows), source.Len())
	}

	positions := roaring.New()
	for _, row := range res.Rows {
		for _, c := range row {
			p, err := conv.IntToUint32(c.Index)
			if err != nil {
				return Stats{}, err
			}
			positions.Add(p)
		}
	}

	ids := make(map[int]string, positions.GetCardinality())
	records := make(map[int]*model.Record)
	shared := roaring.New()

	it := positions.Iterator()
	for it.HasNext() {
		p := it.Next()
		i := int(p)
		id, err := target.ID(ctx, i)
		if err != nil {
			return Stats{}, fmt.Errorf("resolve target %d: %w", i, err)
		}
		ids[i] = id
		if source.Contains(id) {
			shared.Add(p)
		}
		if opts.OnlyID {
			continue
		}
		r, err := target.Record(ctx, i)
		if err != nil {
			return Stats{}, fmt.Errorf("resolve target %d: %w", i, err)
		}
		records[i] = r
	}

	stats := Stats{
		Targets: positions.GetCardinality(),
		Shared:  shared.GetCardinality(),
	}

	for row, cands := range res.Rows {
		q := source.At(row)
		q.ClearMatches()

		for _, c := range cands {
			if len(q.Matches) >= opts.Limit {
				break
			}
			id := ids[c.Index]
			if opts.ExcludeSelf && id == q.ID {
				continue
			}

			var r *model.Record
			switch {
			case opts.OnlyID:
				r = model.Stub(id)
			case shared.Contains(uint32(c.Index)) || len(records[c.Index].Matches) > 0:
				r = records[c.Index].Detach()
			default:
				r = records[c.Index]
			}

			q.AppendMatch(r, opts.Metric, c.Score)
			stats.Matches++
		}
	}
	return stats, nil
}
