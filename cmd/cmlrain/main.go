// Command cmlrain is the historic, one-shot command-line interface for
// deriving a rainfall field from commercial microwave link data over a
// fixed time window.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telcorain/cmlrain/cmlrainutil"
	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/scheduler"
)

func main() {
	cfg := cmlrainutil.InitializeConfig("cmlrain", "Derive a rainfall field from commercial microwave link data.")

	cfg.RunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a historic calculation over a fixed time window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoric(cfg)
		},
	}
	cfg.RunCmd.Flags().String("start", "", "window start, RFC3339")
	cfg.RunCmd.Flags().String("end", "", "window end, RFC3339")
	cfg.RunCmd.Flags().Int("step_minutes", 1, "sample step in minutes")
	cfg.RunCmd.Flags().Int("output_step_minutes", 10, "animation frame cadence in minutes")
	cfg.RunCmd.Flags().String("link_set", "", "path to the link-sets file")
	cfg.RunCmd.Flags().Bool("forced", false, "wipe the output time-series bucket before the run; frames already recorded are not rewritten")
	cfg.BindPFlags(cfg.RunCmd.Flags())
	cfg.Root.AddCommand(cfg.RunCmd)

	cfg.LinksCmd = &cobra.Command{
		Use:   "links",
		Short: "Initialize a link-sets file from the metadata store's current descriptor population.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initLinkSet(cfg)
		},
	}
	cfg.LinksCmd.Flags().String("link_set", "links.toml", "path to write the link-sets file")
	cfg.BindPFlags(cfg.LinksCmd.Flags())
	cfg.Root.AddCommand(cfg.LinksCmd)

	if err := cfg.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runHistoric(cfg *cmlrainutil.Cfg) error {
	log := cmlrainutil.InitLogging(cfg.GetString("logging.init_level"), cfg.GetString("LogFile")).
		WithField("cmd", "cmlrain run")

	start, err := time.Parse(time.RFC3339, cfg.GetString("start"))
	if err != nil {
		return fmt.Errorf("cmlrain: invalid --start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, cfg.GetString("end"))
	if err != nil {
		return fmt.Errorf("cmlrain: invalid --end: %w", err)
	}

	p := scheduler.RunParams{
		Start:               start,
		End:                 end,
		StepMin:             cfg.GetInt("step_minutes"),
		RollingWindowValues: 6,
		RollingWindowHours:  0.5,
		OutputStepMin:       cfg.GetInt("output_step_minutes"),
	}
	if err := cmlrainutil.ValidateRunParams(p); err != nil {
		return err
	}

	rt, closeFn, err := cmlrainutil.BuildRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	run := metadata.NewRealtimeRun(start, 0, p.StepMin, rt.Grid.Bounds.Resolution,
		rt.Grid.Bounds.XMin, rt.Grid.Bounds.XMax, rt.Grid.Bounds.YMin, rt.Grid.Bounds.YMax, "")
	runID, err := rt.Meta.InsertRun(ctx, run)
	if err != nil {
		return fmt.Errorf("cmlrain: registering run: %w", err)
	}

	if cfg.GetBool("forced") {
		if wipe := rt.TSDB.WipeOutputBucket(ctx, rt.OutputBucket); wipe != nil {
			if err := wipe.Join(ctx); err != nil {
				return fmt.Errorf("cmlrain: wiping output bucket before forced rewrite: %w", err)
			}
		}
	}

	if err := rt.Run(ctx, runID, p); err != nil {
		return err
	}
	log.WithField("run_id", runID).Info("historic run complete")
	return nil
}

func initLinkSet(cfg *cmlrainutil.Cfg) error {
	log := cmlrainutil.InitLogging(cfg.GetString("logging.init_level"), "").WithField("cmd", "cmlrain links")

	driver, dsn := cmlrainutil.MariaDBDSN(cfg.Viper)
	var store metadata.Store
	var err error
	if driver == "mysql" {
		store, err = metadata.NewMariaDBStore(dsn, log)
	} else if driver == "sqlite3" {
		store, err = metadata.NewSQLiteStore(dsn, log)
	} else {
		store, err = metadata.NewPostgresStore(dsn, log)
	}
	if err != nil {
		return fmt.Errorf("cmlrain: opening metadata store: %w", err)
	}
	defer store.Close()

	descriptors, err := store.LoadDescriptors(context.Background())
	if err != nil {
		return fmt.Errorf("cmlrain: loading descriptors: %w", err)
	}
	ids := make([]int64, 0, len(descriptors))
	for id := range descriptors {
		ids = append(ids, id)
	}

	ls := cmlrainutil.NewLinkSet(ids)
	path := cfg.GetString("link_set")
	if err := ls.Save(path); err != nil {
		return fmt.Errorf("cmlrain: writing link-sets file: %w", err)
	}
	log.WithField("links", len(ids)).Infof("wrote link-sets file %s", path)
	return nil
}
