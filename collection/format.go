package collection

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/vecmatch/codec"
	"github.com/hupe1980/vecmatch/internal/conv"
)

const (
	// manifestMagic identifies stored collection manifests (ASCII: "VMC1").
	manifestMagic = 0x564D4331
	// formatVersion is the current stored collection format version.
	formatVersion = 1

	// DTypeFloat32 is the only embedding type the matcher consumes.
	DTypeFloat32 = "float32"

	manifestSuffix = "/manifest"
	vectorsSuffix  = "/vectors"
)

var (
	// ErrCorrupt is returned for manifests or blocks that fail validation.
	ErrCorrupt = errors.New("collection: corrupt stored collection")
)

// manifest describes a stored collection. It is written last, so a
// collection without a manifest does not exist.
type manifest struct {
	Version      int              `json:"version"`
	Count        int              `json:"count"`
	Dim          int              `json:"dim"`
	DType        string           `json:"dtype"`
	Compression  string           `json:"compression"`
	RowsPerBlock int              `json:"rows_per_block"`
	Blocks       []blockRef       `json:"blocks"`
	IDs          []string         `json:"ids"`
	Tags         []map[string]any `json:"tags,omitempty"`
}

// blockRef locates one encoded block in the vector blob.
type blockRef struct {
	Offset   uint64 `json:"offset"`
	Length   uint32 `json:"length"`
	Checksum uint32 `json:"crc32c"`
}

func (m *manifest) validate() error {
	if m.Version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, m.Version)
	}
	if m.Count < 0 || m.Dim < 0 || len(m.IDs) != m.Count {
		return fmt.Errorf("%w: %d ids for %d records", ErrCorrupt, len(m.IDs), m.Count)
	}
	if m.Tags != nil && len(m.Tags) != m.Count {
		return fmt.Errorf("%w: %d tag sets for %d records", ErrCorrupt, len(m.Tags), m.Count)
	}
	if m.Count == 0 {
		return nil
	}
	if m.RowsPerBlock <= 0 {
		return fmt.Errorf("%w: rows per block %d", ErrCorrupt, m.RowsPerBlock)
	}
	if want := (m.Count + m.RowsPerBlock - 1) / m.RowsPerBlock; len(m.Blocks) != want {
		return fmt.Errorf("%w: %d blocks, want %d", ErrCorrupt, len(m.Blocks), want)
	}
	return nil
}

// encodeManifest writes [magic u32][codec name length u32][codec name][body].
func encodeManifest(m *manifest, c codec.Codec) ([]byte, error) {
	body, err := c.Marshal(m)
	if err != nil {
		return nil, err
	}
	name := c.Name()
	n, err := conv.IntToUint32(len(name))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 8, 8+len(name)+len(body))
	binary.LittleEndian.PutUint32(out[0:], manifestMagic)
	binary.LittleEndian.PutUint32(out[4:], n)
	out = append(out, name...)
	return append(out, body...), nil
}

func decodeManifest(data []byte) (*manifest, error) {
	if len(data) < 8 || binary.LittleEndian.Uint32(data[0:]) != manifestMagic {
		return nil, fmt.Errorf("%w: bad manifest header", ErrCorrupt)
	}
	n, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(data[4:]))
	if err != nil || n > len(data)-8 {
		return nil, fmt.Errorf("%w: bad codec name length", ErrCorrupt)
	}
	name := string(data[8 : 8+n])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown manifest codec %q", ErrCorrupt, name)
	}

	var m manifest
	if err := c.Unmarshal(data[8+n:], &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
