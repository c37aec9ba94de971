package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/site"
)

var (
	showRaw   bool
	showWidth int
)

var showCmd = &cobra.Command{
	Use:   "show <collection>/<slug>",
	Short: "Show an entry in the terminal",
	Long: `Render an entry's metadata, description, and source code as formatted
markdown in the terminal. Use --raw to print the markdown unrendered.`,
	Example: `  snapshotplot show clustering/20250717_152701_767_kmeans
  snapshotplot show clustering/20250717_152701_767_kmeans --raw > entry.md`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print markdown without rendering")
	showCmd.Flags().IntVar(&showWidth, "width", 100, "word wrap width")

	RootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	collection, slug, err := splitEntryRef(args[0])
	if err != nil {
		return err
	}

	s, err := openSite()
	if err != nil {
		return err
	}
	entry, err := s.Entry(collection, slug)
	if err != nil {
		return fmt.Errorf("failed to load entry %s: %w", args[0], err)
	}

	doc := entryMarkdown(entry)
	if showRaw {
		fmt.Fprint(cmd.OutOrStdout(), doc)
		return nil
	}

	style := glamour.WithStandardStyle("notty")
	if output.IsColorEnabled() {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(showWidth))
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	rendered, err := r.Render(doc)
	if err != nil {
		return fmt.Errorf("failed to render entry: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// entryMarkdown lays an entry out as a single markdown document.
func entryMarkdown(e *site.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", e.Title)

	meta := []string{e.Date.Format("January 2, 2006"), e.Collection}
	if e.Author != "" {
		meta = append(meta, e.Author)
	}
	fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(meta, " · "))

	if len(e.Tags) > 0 {
		tags := make([]string, len(e.Tags))
		for i, t := range e.Tags {
			tags[i] = "`" + t + "`"
		}
		fmt.Fprintf(&sb, "Tags: %s\n\n", strings.Join(tags, " "))
	}
	if e.Description != "" {
		fmt.Fprintf(&sb, "> %s\n\n", e.Description)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	if e.PlotImage != "" {
		fmt.Fprintf(&sb, "Plot: %s\n\n", e.PlotImage)
	}
	if e.Code != "" {
		sb.WriteString("## Source\n\n```go\n")
		sb.WriteString(strings.TrimRight(e.Code, "\n"))
		sb.WriteString("\n```\n")
	}
	return sb.String()
}
