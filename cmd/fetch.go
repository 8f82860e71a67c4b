package cmd

import (
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/api"
	"github.com/spf13/cobra"
)

// FetchMain is wrapped by NewFetchCommand and only exported for testing
// purposes.
var FetchMain *api.Main

// NewFetchCommand returns a new cobra command wrapping FetchMain.
func NewFetchCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	FetchMain = api.NewMain()
	fetchCommand := &cobra.Command{
		Use:   "fetch",
		Short: "fetch - download the Joshua Project collections",
		Long: `Downloads people groups, countries, languages, and totals from the
Joshua Project API and writes them, with dataset_metadata.json, to the
output directory. The API key is read from --api-key or JPDATA_API_KEY.
Responses can be kept in a bolt cache and replayed with --from-cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			FetchMain.Log = newLogger(stderr)
			ctx, cancel := signalContext()
			defer cancel()
			if err := FetchMain.RunContext(ctx); err != nil {
				return err
			}
			FetchMain.Log.Printf("Done: %v", time.Since(start))
			return nil
		},
	}
	err := commandeer.Flags(fetchCommand.Flags(), FetchMain)
	if err != nil {
		panic(err)
	}
	return fetchCommand
}

func init() {
	subcommandFns["fetch"] = NewFetchCommand
}
