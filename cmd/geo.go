package cmd

import (
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/geo"
	"github.com/spf13/cobra"
)

// GeoMain is wrapped by NewGeoCommand and only exported for testing
// purposes.
var GeoMain *geo.Main

// NewGeoCommand returns a new cobra command wrapping GeoMain.
func NewGeoCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	GeoMain = geo.NewMain()
	geoCommand := &cobra.Command{
		Use:   "geo",
		Short: "geo - add coordinates to people groups and languages",
		Long: `Adds Natural Earth country centroids to the fetched people groups and
Glottolog coordinates, glottocodes, and language families to the fetched
languages. enrich reads the geo enriched languages when they exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			GeoMain.Log = newLogger(stderr)
			ctx, cancel := signalContext()
			defer cancel()
			if err := GeoMain.RunContext(ctx); err != nil {
				return err
			}
			GeoMain.Log.Printf("Done: %v", time.Since(start))
			return nil
		},
	}
	err := commandeer.Flags(geoCommand.Flags(), GeoMain)
	if err != nil {
		panic(err)
	}
	return geoCommand
}

func init() {
	subcommandFns["geo"] = NewGeoCommand
}
