package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/viz"
	"github.com/spf13/cobra"
)

// VizMain is wrapped by NewVizCommand and only exported for testing
// purposes.
var VizMain *viz.Main

// NewVizCommand returns a new cobra command wrapping VizMain.
func NewVizCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	VizMain = viz.NewMain()
	vizCommand := &cobra.Command{
		Use:   "viz",
		Short: "viz - write the compact visualization document",
		Long: `Reads an enriched dataset and writes the compact document the browser
visualizations load, with short keys and summary statistics. enrich --viz
writes the same document during an enrichment run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			VizMain.Log = newLogger(stderr)
			ctx, cancel := signalContext()
			defer cancel()
			return VizMain.RunContext(ctx)
		},
	}
	err := commandeer.Flags(vizCommand.Flags(), VizMain)
	if err != nil {
		panic(err)
	}
	return vizCommand
}

func init() {
	subcommandFns["viz"] = NewVizCommand
}
