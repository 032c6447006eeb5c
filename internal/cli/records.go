package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/vecmatch/codec"
	"github.com/hupe1980/vecmatch/model"
	"github.com/hupe1980/vecmatch/resource"
	"gopkg.in/yaml.v3"
)

// loadRecords reads a record file. The format follows the extension:
// .json, .yaml/.yml or .msgpack.
func loadRecords(ctx context.Context, path string, rc *resource.Controller) ([]*model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(resource.NewRateLimitedReader(ctx, f, rc))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []*model.Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = codec.GoJSON{}.Unmarshal(data, &records)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	case ".msgpack", ".mpk":
		err = codec.Msgpack{}.Unmarshal(data, &records)
	default:
		return nil, fmt.Errorf("unsupported record file %s (want .json, .yaml or .msgpack)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%s: record %d is null", path, i)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
	}
	return records, nil
}

// matchOutput is the printed form of a matched source record.
type matchOutput struct {
	ID      string       `json:"id" yaml:"id"`
	Matches []matchEntry `json:"matches" yaml:"matches"`
}

type matchEntry struct {
	ID    string         `json:"id" yaml:"id"`
	Score float32        `json:"score" yaml:"score"`
	Tags  map[string]any `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func toOutput(records []*model.Record, metric string) []matchOutput {
	out := make([]matchOutput, len(records))
	for i, r := range records {
		entries := make([]matchEntry, len(r.Matches))
		for j, m := range r.Matches {
			s, _ := m.Score(metric)
			entries[j] = matchEntry{ID: m.Record.ID, Score: s, Tags: m.Record.Tags}
		}
		out[i] = matchOutput{ID: r.ID, Matches: entries}
	}
	return out
}

func writeOutput(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		data, err := codec.GoJSON{}.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}
