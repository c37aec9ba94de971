package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
)

var (
	collectionTitle       string
	collectionDescription string
	collectionTags        []string
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage plot collections",
	Long: `Collections group related plot entries; each one is rendered as a
gallery page. A collection is a directory under collections/ with an
optional _index.md holding its title, description, and tags.`,
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection",
	Long: `Create collections/<name>/_index.md and register the collection in
_config.yml. Names may only contain letters, digits, '-' and '_'.`,
	Example: `  snapshotplot collection create experiments
  snapshotplot collection create timeseries --title "Time Series" --tag forecasting`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List collections and their entry counts",
	Args:    cobra.NoArgs,
	RunE:    runCollectionList,
}

func init() {
	collectionCreateCmd.Flags().StringVar(&collectionTitle, "title", "", "collection title (default: title-cased name)")
	collectionCreateCmd.Flags().StringVar(&collectionDescription, "description", "", "collection description")
	collectionCreateCmd.Flags().StringSliceVar(&collectionTags, "tag", nil, "tag applied to the collection (repeatable)")

	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	RootCmd.AddCommand(collectionCmd)
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	s, err := openSite()
	if err != nil {
		return err
	}

	coll, err := s.CreateCollection(args[0], collectionTitle, collectionDescription, collectionTags)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created collection %s (%s)\n", coll.Name, coll.Title)
	return nil
}

func runCollectionList(cmd *cobra.Command, args []string) error {
	s, err := openSite()
	if err != nil {
		return err
	}

	collections, skipped, err := s.Collections()
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderCollectionTable(collections))
	if len(skipped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d entries could not be loaded (run with -v for details)\n", len(skipped))
	}
	return nil
}
