package cli

import (
	"fmt"

	"github.com/hupe1980/vecmatch/codec"
	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/resource"
	"github.com/spf13/cobra"
)

const packLongDesc string = `Write a record file as a stored collection.

Stored collections keep embeddings in compressed fixed-size blocks next to a
manifest with ids and tags. They can be streamed with 'vecmatch match
--batch-size' without loading the whole target into memory.

Example:
  vecmatch pack --input docs.json --output dir://data/docs
  vecmatch pack --input docs.yaml --output s3://bucket/collections/docs --compression zstd --codec msgpack`

const packShortDesc string = "Write records as a stored collection"

type packCommander struct {
	root *rootCommander

	input        string
	output       string
	compression  string
	rowsPerBlock int
	codec        string
}

func newPackCmd(root *rootCommander) *cobra.Command {
	cmder := &packCommander{root: root}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: packShortDesc,
		Long:  packLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Record file to pack (required)")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Store reference of the new collection (required)")
	cmd.Flags().StringVar(&cmder.compression, "compression", "lz4", "Block compression: none, lz4 or zstd")
	cmd.Flags().IntVar(&cmder.rowsPerBlock, "rows-per-block", collection.DefaultRowsPerBlock, "Embeddings per block")
	cmd.Flags().StringVar(&cmder.codec, "codec", codec.Default.Name(), "Manifest codec: json, go-json or msgpack")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (c *packCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	storage := c.root.cfg.Storage

	cd, ok := codec.ByName(c.codec)
	if !ok {
		return fmt.Errorf("unknown codec %q (want one of %v)", c.codec, codec.Names())
	}

	ref, err := parseStoreRef(c.output, true)
	if err != nil {
		return err
	}

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: storage.IOLimitBytesPerSec})
	records, err := loadRecords(ctx, c.input, rc)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, ref, storage)
	if err != nil {
		return err
	}
	err = collection.WriteStored(ctx, store, ref.Name, records,
		collection.WithCompression(c.compression),
		collection.WithRowsPerBlock(c.rowsPerBlock),
		collection.WithCodec(cd),
	)
	if err != nil {
		return fmt.Errorf("pack %s: %w", ref, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "packed %d records into %s\n", len(records), ref)
	return nil
}
