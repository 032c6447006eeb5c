package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/hupe1980/vecmatch/collection"
	"github.com/spf13/cobra"
)

type lsCommander struct {
	root *rootCommander
	long bool
}

func newLsCmd(root *rootCommander) *cobra.Command {
	cmder := &lsCommander{root: root}

	cmd := &cobra.Command{
		Use:   "ls <store>",
		Short: "List stored collections",
		Long: `List the stored collections of a blob store.

Example:
  vecmatch ls dir://data
  vecmatch ls s3://bucket/collections --long`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVarP(&cmder.long, "long", "l", false, "Show record count and dimension")

	return cmd
}

func (c *lsCommander) run(cmd *cobra.Command, arg string) error {
	ctx := cmd.Context()

	ref, err := parseStoreRef(arg, false)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, ref, c.root.cfg.Storage)
	if err != nil {
		return err
	}

	names, err := collection.ListStored(ctx, store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !c.long {
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRECORDS\tDIM")
	for _, name := range names {
		s, err := collection.OpenStored(ctx, store, name, collection.WithCacheBytes(0))
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		dim, err := s.Dim()
		_ = s.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", name, s.Len(), dim)
	}
	return w.Flush()
}
