package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/site"
)

var (
	listCollection string
	listTag        string
	listAuthor     string
	listSearch     string
	listLimit      int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List site entries",
	Long: `List the entries of every collection, newest first.

Filters combine: --collection, --tag and --author narrow the set, and
--search ranks what remains by fuzzy match against titles and tags.
Entries created from a bare plot without an index.md are marked with *.`,
	Example: `  # Everything, newest first
  snapshotplot list

  # Clustering plots tagged kmeans
  snapshotplot list --collection clustering --tag kmeans

  # Fuzzy search
  snapshotplot list --search "loss curv"`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listCollection, "collection", "c", "", "only entries in this collection")
	listCmd.Flags().StringVarP(&listTag, "tag", "t", "", "only entries with this tag")
	listCmd.Flags().StringVar(&listAuthor, "author", "", "only entries by this author")
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "fuzzy search titles and tags")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "show at most n entries (0 for all)")

	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSite()
	if err != nil {
		return err
	}

	entries, _, err := s.Entries()
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}

	if listCollection != "" {
		entries = site.FilterByCollection(entries, listCollection)
	}
	if listTag != "" {
		entries = site.FilterByTag(entries, listTag)
	}
	if listAuthor != "" {
		entries = site.FilterByAuthor(entries, listAuthor)
	}
	entries = site.Search(entries, listSearch)

	total := len(entries)
	if listLimit > 0 && total > listLimit {
		entries = entries[:listLimit]
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderEntryTable(entries))
	if len(entries) < total {
		fmt.Fprintf(out, "\nShowing %d of %d entries\n", len(entries), total)
	}
	return nil
}
