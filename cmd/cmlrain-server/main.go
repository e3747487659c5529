// Command cmlrain-server runs the periodic realtime scheduler and, if
// enabled, the HTTP API that serves rendered frames and grid-value
// queries.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/telcorain/cmlrain/cmlrainutil"
	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/scheduler"
)

func main() {
	cfg := cmlrainutil.InitializeConfig("cmlrain-server", "Run the realtime rainfall-field scheduler and HTTP API.")

	cfg.ServerCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the realtime scheduler (and HTTP API, if enabled).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}
	cfg.ServerCmd.Flags().Int("step_minutes", 1, "sample step in minutes")
	cfg.ServerCmd.Flags().Int("output_step_minutes", 10, "animation frame cadence in minutes")
	cfg.ServerCmd.Flags().Int("window_minutes", 120, "rolling query window per iteration")
	cfg.ServerCmd.Flags().String("link_set", "links.toml", "path to the link-sets file")
	cfg.ServerCmd.Flags().Bool("open_browser", false, "open the viewer URL in the default browser on startup")
	cfg.BindPFlags(cfg.ServerCmd.Flags())
	cfg.Root.AddCommand(cfg.ServerCmd)

	if err := cfg.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func serve(cfg *cmlrainutil.Cfg) error {
	log := cmlrainutil.InitLogging(cfg.GetString("logging.init_level"), cfg.GetString("LogFile")).
		WithField("cmd", "cmlrain-server")

	rt, closeFn, err := cmlrainutil.BuildRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	viewerURL := viewerURLFor(cfg)

	lastRun, ok, err := rt.Meta.GetLastRun(ctx)
	var runID int64
	if ok {
		runID = lastRun.ID
	} else {
		bounds := rt.Grid.Bounds
		run := metadata.NewRealtimeRun(time.Now().UTC(), cfg.GetInt("realtime.retention_hours")*60,
			cfg.GetInt("step_minutes"), bounds.Resolution, bounds.XMin, bounds.XMax, bounds.YMin, bounds.YMax, viewerURL)
		runID, err = rt.Meta.InsertRun(ctx, run)
		if err != nil {
			return fmt.Errorf("cmlrain-server: registering realtime run: %w", err)
		}
	}

	rt.Anim.RetentionFrames = cfg.GetInt("realtime.retention_hours") * 60 / max1(cfg.GetInt("output_step_minutes"))
	rt.Anim.Realtime = true

	bus := scheduler.NewStatusBus()
	defer bus.Close()
	sched := &scheduler.Scheduler{
		RunID:      runID,
		Iterate:    rt.Run,
		Healthy:    func(ctx context.Context) error { return rt.TSDB.Ping(ctx) },
		WriterBusy: rt.Writer.Locked,
		OutputStep: time.Duration(cfg.GetInt("output_step_minutes")) * time.Minute,
		Bus:        bus,
	}
	go logStatusEvents(bus)

	windowMin := cfg.GetInt("window_minutes")
	stepMin := cfg.GetInt("step_minutes")
	outputStepMin := cfg.GetInt("output_step_minutes")
	sched.RunRealtime(ctx, func() scheduler.RunParams {
		now := time.Now().UTC()
		return scheduler.RunParams{
			Start:               now.Add(-time.Duration(windowMin) * time.Minute),
			End:                 now,
			StepMin:             stepMin,
			RollingWindowValues: 6,
			RollingWindowHours:  0.5,
			OutputStepMin:       outputStepMin,
		}
	})
	defer sched.Stop()

	if !cfg.GetBool("realtime.http_enable") {
		select {}
	}

	api := &scheduler.API{Meta: rt.Meta, OutputsWeb: rt.Writer.OutputsWeb, OutputsRaw: rt.Writer.OutputsRaw, Links: rt.LookupLink}
	addr := fmt.Sprintf("%s:%d", cfg.GetString("realtime.http_address"), cfg.GetInt("realtime.http_port"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if cfg.GetBool("open_browser") {
		open.Run(viewerURL)
	}

	log.WithField("addr", addr).Info("starting HTTP API")
	return srv.ListenAndServe()
}

func viewerURLFor(cfg *cmlrainutil.Cfg) string {
	return fmt.Sprintf("http://%s:%d/", cfg.GetString("realtime.http_address"), cfg.GetInt("realtime.http_port"))
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func logStatusEvents(bus *scheduler.StatusBus) {
	for ev := range bus.Events() {
		fmt.Fprintf(os.Stderr, "[run %d] %s: %s (progress %d)\n", ev.RunID, ev.Kind, ev.Message, ev.Progress)
	}
}
