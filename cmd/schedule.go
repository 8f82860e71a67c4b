package cmd

import (
	"context"
	"io"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/api"
	"github.com/lukeslp/joshua-project-data/aws/s3"
	"github.com/lukeslp/joshua-project-data/enrich"
	"github.com/lukeslp/joshua-project-data/geo"
	"github.com/lukeslp/joshua-project-data/schedule"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ScheduleMain is wrapped by NewScheduleCommand and only exported for
// testing purposes.
var ScheduleMain *schedule.Main

// schedulePublish adds the publish step to each scheduled run.
var schedulePublish bool

// scheduleGeo adds the geo step between fetch and enrich.
var scheduleGeo bool

// configure applies the config file and environment to m the same way the
// m's own subcommand would.
func configure(name string, m interface{}) error {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := commandeer.Flags(fs, m); err != nil {
		return errors.Wrapf(err, "building %s flags", name)
	}
	fs.String("config", configFile, "")
	return errors.Wrapf(setAllConfig(viper.New(), fs, EnvPrefix), "configuring %s", name)
}

// NewScheduleCommand returns a new cobra command wrapping ScheduleMain.
func NewScheduleCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ScheduleMain = schedule.NewMain()
	scheduleCommand := &cobra.Command{
		Use:   "schedule",
		Short: "schedule - fetch and enrich on a cron schedule",
		Long: `Runs fetch and then enrich (geo in between with --geo, and publish
with --publish) on a cron schedule, quarterly by default. Each step is
configured from the config file and environment exactly like its own
subcommand. geo and enrich read from the fetch output directory, geo writes
back into it, and publish uploads the enrich output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(stderr)
			fm, gm, em, pm := api.NewMain(), geo.NewMain(), enrich.NewMain(), s3.NewMain()
			for name, m := range map[string]interface{}{"fetch": fm, "geo": gm, "enrich": em, "publish": pm} {
				if err := configure(name, m); err != nil {
					return err
				}
			}
			fm.Log, gm.Log = log.With("step", "fetch"), log.With("step", "geo")
			em.Log, pm.Log = log.With("step", "enrich"), log.With("step", "publish")
			gm.InputDir, gm.OutputDir = fm.OutputDir, fm.OutputDir
			em.InputDir = fm.OutputDir
			pm.Dir = em.OutputDir

			ScheduleMain.Log = log
			ScheduleMain.Steps = []schedule.Step{{Name: "fetch", Run: fm.RunContext}}
			if scheduleGeo {
				ScheduleMain.Steps = append(ScheduleMain.Steps, schedule.Step{Name: "geo", Run: gm.RunContext})
			}
			ScheduleMain.Steps = append(ScheduleMain.Steps, schedule.Step{Name: "enrich", Run: em.RunContext})
			if schedulePublish {
				ScheduleMain.Steps = append(ScheduleMain.Steps, schedule.Step{
					Name: "publish",
					Run:  func(ctx context.Context) error { return pm.RunContext(ctx) },
				})
			}
			ctx, cancel := signalContext()
			defer cancel()
			return ScheduleMain.RunContext(ctx)
		},
	}
	flags := scheduleCommand.Flags()
	err := commandeer.Flags(flags, ScheduleMain)
	if err != nil {
		panic(err)
	}
	flags.BoolVar(&schedulePublish, "publish", false, "Publish to S3 after enriching.")
	flags.BoolVar(&scheduleGeo, "geo", false, "Add coordinates to the fetched collections before enriching.")
	return scheduleCommand
}

func init() {
	subcommandFns["schedule"] = NewScheduleCommand
}
