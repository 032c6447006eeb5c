package collection

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/vecmatch/blobstore"
	"github.com/hupe1980/vecmatch/codec"
	"github.com/hupe1980/vecmatch/internal/compress"
	"github.com/hupe1980/vecmatch/internal/conv"
	"github.com/hupe1980/vecmatch/internal/hash"
	"github.com/hupe1980/vecmatch/model"
)

// DefaultRowsPerBlock is the number of embeddings per encoded block.
const DefaultRowsPerBlock = 1024

// WriteOptions configures WriteStored.
type WriteOptions struct {
	// Compression is one of "none", "lz4" or "zstd".
	Compression string
	// RowsPerBlock is the number of rows per encoded block.
	RowsPerBlock int
	// Codec encodes the manifest.
	Codec codec.Codec
}

// WriteOption configures WriteStored.
type WriteOption func(*WriteOptions)

// WithCompression sets the block compression ("none", "lz4", "zstd").
func WithCompression(name string) WriteOption {
	return func(o *WriteOptions) {
		o.Compression = name
	}
}

// WithRowsPerBlock sets the number of rows per encoded block.
func WithRowsPerBlock(n int) WriteOption {
	return func(o *WriteOptions) {
		o.RowsPerBlock = n
	}
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) WriteOption {
	return func(o *WriteOptions) {
		o.Codec = c
	}
}

// WriteStored writes records as a stored collection named name. Every
// record needs a dense embedding of the same dimension. The vector blob is
// written before the manifest, so readers never observe a partial
// collection.
func WriteStored(ctx context.Context, store blobstore.Store, name string, records []*model.Record, optFns ...WriteOption) error {
	opts := WriteOptions{
		Compression:  "lz4",
		RowsPerBlock: DefaultRowsPerBlock,
		Codec:        codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RowsPerBlock <= 0 {
		return fmt.Errorf("collection: rows per block must be positive, got %d", opts.RowsPerBlock)
	}
	comp, err := compress.Parse(opts.Compression)
	if err != nil {
		return err
	}

	m := &manifest{
		Version:      formatVersion,
		Count:        len(records),
		DType:        DTypeFloat32,
		Compression:  comp.String(),
		RowsPerBlock: opts.RowsPerBlock,
		IDs:          make([]string, len(records)),
	}

	seen := make(map[string]struct{}, len(records))
	hasTags := false
	for i, r := range records {
		if r.Embedding == nil {
			return fmt.Errorf("%w: record %q has no dense embedding", ErrInvalidEmbeddingType, r.ID)
		}
		if i == 0 {
			m.Dim = len(r.Embedding)
		} else if len(r.Embedding) != m.Dim {
			return fmt.Errorf("%w: record %q has dimension %d, want %d", ErrInvalidEmbeddingType, r.ID, len(r.Embedding), m.Dim)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		m.IDs[i] = r.ID
		hasTags = hasTags || len(r.Tags) > 0
	}
	if hasTags {
		m.Tags = make([]map[string]any, len(records))
		for i, r := range records {
			m.Tags[i] = maps.Clone(r.Tags)
		}
	}

	var vectors []byte
	rows := make([]float32, 0, opts.RowsPerBlock*m.Dim)
	for lo := 0; lo < len(records); lo += opts.RowsPerBlock {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+opts.RowsPerBlock, len(records))
		rows = rows[:0]
		for _, r := range records[lo:hi] {
			rows = append(rows, r.Embedding...)
		}

		block, err := compress.Encode(conv.Float32Bytes(rows), comp)
		if err != nil {
			return err
		}
		length, err := conv.IntToUint32(len(block))
		if err != nil {
			return err
		}
		m.Blocks = append(m.Blocks, blockRef{
			Offset:   uint64(len(vectors)),
			Length:   length,
			Checksum: hash.CRC32C(block),
		})
		vectors = append(vectors, block...)
	}

	if err := store.Put(ctx, name+vectorsSuffix, vectors); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	data, err := encodeManifest(m, opts.Codec)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name+manifestSuffix, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// DeleteStored removes a stored collection. The manifest goes first.
func DeleteStored(ctx context.Context, store blobstore.Store, name string) error {
	if err := store.Delete(ctx, name+manifestSuffix); err != nil {
		return err
	}
	return store.Delete(ctx, name+vectorsSuffix)
}

// ListStored returns the names of all stored collections in store.
func ListStored(ctx context.Context, store blobstore.Store) ([]string, error) {
	blobs, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range blobs {
		if n, ok := strings.CutSuffix(b, manifestSuffix); ok && n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
