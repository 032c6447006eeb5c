package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/hupe1980/vecmatch/blobstore"
	"github.com/hupe1980/vecmatch/internal/cache"
	"github.com/hupe1980/vecmatch/internal/compress"
	"github.com/hupe1980/vecmatch/internal/conv"
	"github.com/hupe1980/vecmatch/internal/hash"
	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/model"
	"github.com/hupe1980/vecmatch/resource"
)

// DefaultCacheBytes is the default decoded block cache size per stored
// collection.
const DefaultCacheBytes = 64 << 20

// StoredOptions configures OpenStored.
type StoredOptions struct {
	// CacheBytes bounds the decoded block cache. 0 disables caching.
	CacheBytes int64
	// ResourceController charges block reads against its IO limit and
	// cached blocks against its memory limit.
	ResourceController *resource.Controller
}

// StoredOption configures OpenStored.
type StoredOption func(*StoredOptions)

// WithCacheBytes sets the decoded block cache size.
func WithCacheBytes(n int64) StoredOption {
	return func(o *StoredOptions) {
		o.CacheBytes = n
	}
}

// WithResourceController sets the resource controller for reads.
func WithResourceController(rc *resource.Controller) StoredOption {
	return func(o *StoredOptions) {
		o.ResourceController = rc
	}
}

// Stored is a read-only collection backed by a blob store. Embeddings are
// read block-wise on demand; records are hydrated only by Record.
type Stored struct {
	name  string
	m     *manifest
	index map[string]int
	comp  compress.Type
	blob  blobstore.Blob
	cache *cache.LRU
	rc    *resource.Controller
}

var _ Collection = (*Stored)(nil)

// OpenStored opens the stored collection named name.
func OpenStored(ctx context.Context, store blobstore.Store, name string, optFns ...StoredOption) (*Stored, error) {
	opts := StoredOptions{
		CacheBytes: DefaultCacheBytes,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	data, err := blobstore.ReadAll(ctx, store, name+manifestSuffix)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	m, err := decodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	comp, err := compress.Parse(m.Compression)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	index := make(map[string]int, m.Count)
	for i, id := range m.IDs {
		if _, ok := index[id]; ok {
			return nil, fmt.Errorf("open %s: %w: %q", name, ErrDuplicateID, id)
		}
		index[id] = i
	}

	blob, err := store.Open(ctx, name+vectorsSuffix)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	s := &Stored{
		name:  name,
		m:     m,
		index: index,
		comp:  comp,
		blob:  blob,
		rc:    opts.ResourceController,
	}
	if opts.CacheBytes > 0 {
		s.cache = cache.NewLRU(opts.CacheBytes, opts.ResourceController)
	}
	return s, nil
}

// Name returns the collection name.
func (s *Stored) Name() string {
	return s.name
}

// Len returns the number of records.
func (s *Stored) Len() int {
	return s.m.Count
}

// Contains reports whether a record with the given id exists.
func (s *Stored) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// ID returns the id at position i.
func (s *Stored) ID(_ context.Context, i int) (string, error) {
	if i < 0 || i >= s.m.Count {
		return "", ErrOutOfRange
	}
	return s.m.IDs[i], nil
}

// Record hydrates the record at position i with its embedding and tags.
func (s *Stored) Record(ctx context.Context, i int) (*model.Record, error) {
	if i < 0 || i >= s.m.Count {
		return nil, ErrOutOfRange
	}
	emb, err := s.EmbeddingsRange(ctx, i, i+1)
	if err != nil {
		return nil, err
	}
	r := &model.Record{ID: s.m.IDs[i], Embedding: emb.Data}
	if s.m.Tags != nil {
		r.Tags = maps.Clone(s.m.Tags[i])
	}
	return r, nil
}

// Dim returns the embedding dimension.
func (s *Stored) Dim() (int, error) {
	if s.m.DType != DTypeFloat32 {
		return 0, fmt.Errorf("%w: stored dtype %q", ErrInvalidEmbeddingType, s.m.DType)
	}
	return s.m.Dim, nil
}

// Embeddings reads the full embedding matrix.
func (s *Stored) Embeddings(ctx context.Context) (*matrix.Dense, error) {
	return s.EmbeddingsRange(ctx, 0, s.m.Count)
}

// EmbeddingsRange decodes only the blocks covering rows [lo, hi).
func (s *Stored) EmbeddingsRange(ctx context.Context, lo, hi int) (*matrix.Dense, error) {
	if err := checkRange(lo, hi, s.m.Count); err != nil {
		return nil, err
	}
	dim, err := s.Dim()
	if err != nil {
		return nil, err
	}

	out := matrix.NewDense(hi-lo, dim)
	if lo == hi || dim == 0 {
		return out, nil
	}

	dst := conv.Float32Bytes(out.Data)
	rowBytes := dim * 4
	rpb := s.m.RowsPerBlock
	for b := lo / rpb; b <= (hi-1)/rpb; b++ {
		data, err := s.block(ctx, b)
		if err != nil {
			return nil, err
		}
		first := b * rpb
		from, to := max(lo, first), min(hi, first+rpb)
		src := data[(from-first)*rowBytes : (to-first)*rowBytes]
		copy(dst[(from-lo)*rowBytes:], src)
	}
	return out, nil
}

// block returns the decoded bytes of block b.
func (s *Stored) block(ctx context.Context, b int) ([]byte, error) {
	key := cache.Key{Blob: s.name + vectorsSuffix, Block: b}
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	ref := s.m.Blocks[b]
	length, err := conv.Uint32ToInt(ref.Length)
	if err != nil {
		return nil, err
	}
	off, err := conv.Uint64ToInt(ref.Offset)
	if err != nil {
		return nil, err
	}
	if err := s.rc.AcquireIO(ctx, length); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	n, err := s.blob.ReadAt(ctx, buf, int64(off))
	if err != nil && !(errors.Is(err, io.EOF) && n == length) {
		return nil, fmt.Errorf("read block %d: %w", b, err)
	}
	if hash.CRC32C(buf) != ref.Checksum {
		return nil, fmt.Errorf("%w: block %d checksum mismatch", ErrCorrupt, b)
	}

	data, err := compress.Decode(buf, s.comp)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", b, err)
	}

	rows := min(s.m.RowsPerBlock, s.m.Count-b*s.m.RowsPerBlock)
	if len(data) != rows*s.m.Dim*4 {
		return nil, fmt.Errorf("%w: block %d holds %d bytes, want %d", ErrCorrupt, b, len(data), rows*s.m.Dim*4)
	}

	if s.cache != nil {
		s.cache.Set(key, data)
	}
	return data, nil
}

// CacheStats returns the hit and miss counters of the block cache.
func (s *Stored) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// Close releases the vector blob and returns cached memory to the
// resource controller.
func (s *Stored) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.blob.Close()
}
