package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/publish"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

var (
	publishURL         string
	publishToken       string
	publishProject     string
	publishTitle       string
	publishCollection  string
	publishAuthor      string
	publishDescription string
	publishTags        []string
)

var publishCmd = &cobra.Command{
	Use:   "publish <snapshot-dir>...",
	Short: "Upload snapshots to a publishing backend",
	Long: `Upload the newest snapshot in each directory to a snapshotplot
publishing backend.

For every directory the newest <stamp>_code.go is located together with the
plot and HTML page sharing its stamp. The backend is asked for upload URLs,
each artifact is uploaded, and the snapshot is finalized. Repository owner,
name, commit, and branch are filled from GitHub Actions variables when set.

The token is read from --token or the SNAPSHOTPLOT_TOKEN environment variable.`,
	Example: `  export SNAPSHOTPLOT_TOKEN=...
  snapshotplot publish snapshots/snapshot_main \
    --url https://plots.example.com --project lab --tag nightly`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishURL, "url", "", "backend base URL")
	publishCmd.Flags().StringVar(&publishToken, "token", "", "API token (default: $"+publish.TokenEnv+")")
	publishCmd.Flags().StringVar(&publishProject, "project", "", "project ID")
	publishCmd.Flags().StringVar(&publishTitle, "title", "", "snapshot title")
	publishCmd.Flags().StringVarP(&publishCollection, "collection", "c", "", "collection name")
	publishCmd.Flags().StringVar(&publishAuthor, "author", "", "author")
	publishCmd.Flags().StringVar(&publishDescription, "description", "", "description")
	publishCmd.Flags().StringSliceVar(&publishTags, "tag", nil, "tag (repeatable)")

	RootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	token := publishToken
	if token == "" {
		token = os.Getenv(publish.TokenEnv)
	}
	client, err := publish.New(publish.Config{URL: publishURL, Token: token, ProjectID: publishProject})
	if err != nil {
		return err
	}

	meta := publish.Metadata{
		Collection:  publishCollection,
		Title:       publishTitle,
		Author:      publishAuthor,
		Description: publishDescription,
		Tags:        publishTags,
	}
	meta.RepoFromEnv()

	st, err := openStore()
	if err != nil {
		slog.Warn("publishes will not be recorded", "err", err)
	} else {
		defer st.Close()
	}

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	progress := output.NewProgress(len(args), "Publishing snapshots")
	progress.SetWriter(out)

	var errs []error
	for _, dir := range args {
		files, err := publish.DiscoverFiles(dir)
		if err != nil {
			errs = append(errs, err)
			progress.Increment()
			continue
		}

		res, err := client.Publish(ctx, files, meta)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			progress.Increment()
			continue
		}
		slog.Info("snapshot published", "dir", dir, "snapshot_id", res.SnapshotID, "files", len(res.Uploaded))

		if st != nil {
			_, err := st.InsertPublish(&store.Publish{
				SnapshotDir: dir,
				RemoteID:    res.SnapshotID,
				BackendURL:  publishURL,
				PublishedAt: time.Now().UTC(),
				Files:       len(res.Uploaded),
			})
			if err != nil {
				slog.Warn("publish not recorded", "dir", dir, "err", err)
			}
		}
		progress.Increment()
	}
	progress.Finish()

	published := len(args) - len(errs)
	fmt.Fprintf(out, "✓ Published %d of %d snapshot(s)\n", published, len(args))
	for _, err := range errs {
		fmt.Fprintf(out, "  ✗ %v\n", err)
	}
	return errors.Join(errs...)
}
