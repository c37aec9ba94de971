package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/site"
)

var (
	initTitle       string
	initAuthor      string
	initDescription string
	initBaseURL     string
	initRepo        string
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new snapshotplot site",
	Long: `Scaffold a new site directory named <name>.

Creates:
  • _config.yml with site title, theme, and build directory
  • _layouts/ and _includes/ holding the default theme templates
  • assets/style.css
  • collections/ for plot entries
  • docs/ as the build output

The directory must not exist yet.`,
	Example: `  # Create a site with default settings
  snapshotplot init my-plots

  # Set the title and author up front
  snapshotplot init lab-notes --title "Lab Notes" --author "Data Team"`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initTitle, "title", "", "site title (default: derived from name)")
	initCmd.Flags().StringVar(&initAuthor, "author", "", "default author")
	initCmd.Flags().StringVar(&initDescription, "description", "", "site description")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "public URL the site is served from")
	initCmd.Flags().StringVar(&initRepo, "github-repo", "", "owner/name of the source repository")

	RootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := args[0]

	cfg := site.DefaultConfig(filepath.Base(dir))
	if initTitle != "" {
		cfg.Title = initTitle
	}
	if initAuthor != "" {
		cfg.Author = initAuthor
	}
	if initDescription != "" {
		cfg.Description = initDescription
	}
	cfg.BaseURL = initBaseURL
	cfg.GitHubRepo = initRepo

	if err := site.Init(dir, cfg); err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created site %q in %s\n\n", cfg.Title, dir)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  cd %s\n", dir)
	fmt.Fprintln(out, "  snapshotplot collection create experiments")
	fmt.Fprintln(out, "  snapshotplot serve --watch")
	return nil
}
