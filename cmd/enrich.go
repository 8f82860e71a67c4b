package cmd

import (
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/enrich"
	"github.com/spf13/cobra"
)

// EnrichMain is wrapped by NewEnrichCommand and only exported for testing
// purposes.
var EnrichMain *enrich.Main

// NewEnrichCommand returns a new cobra command wrapping EnrichMain.
func NewEnrichCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	EnrichMain = enrich.NewMain()
	enrichCommand := &cobra.Command{
		Use:   "enrich",
		Short: "enrich - embed countries and languages into people groups",
		Long: `Loads the fetched collections, embeds each people group's country and
primary language, and writes the enriched dataset plus one dataset per
subset. Nothing is written unless the whole run succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			EnrichMain.Log = newLogger(stderr)
			ctx, cancel := signalContext()
			defer cancel()
			if err := EnrichMain.RunContext(ctx); err != nil {
				return err
			}
			EnrichMain.Log.Printf("Done: %v", time.Since(start))
			return nil
		},
	}
	err := commandeer.Flags(enrichCommand.Flags(), EnrichMain)
	if err != nil {
		panic(err)
	}
	return enrichCommand
}

func init() {
	subcommandFns["enrich"] = NewEnrichCommand
}
