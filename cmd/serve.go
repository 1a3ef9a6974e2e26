package cmd

import (
	"fmt"
	"log/slog"

	"mixdeck/api"
	"mixdeck/engine"
	"mixdeck/playback"

	"github.com/gopxl/beep/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd runs the HTTP control API over one engine
var serveCmd = &cobra.Command{
	Use:   "serve [mix.yaml]",
	Short: "Serve a mix over the HTTP control API",
	Long: `Serve starts the HTTP control API over a single engine. When a mix file
is given it is loaded before the server starts; otherwise the session
stays empty until a plan is posted.

The API exposes transport control, track gain, mute, solo and ducking
adjustments, plan export and import, a health check, and Prometheus
metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("listen", "l", ":8723", "listen address")

	viper.BindPFlag("api.listen", serveCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	driver, err := playback.NewDriver(beep.SampleRate(cfg.Audio.SampleRate))
	if err != nil {
		return fmt.Errorf("failed to start audio output: %w", err)
	}
	defer driver.Close()

	engine.RegisterMetrics()

	eng := engine.New(driver, engine.Options{
		TickInterval:        cfg.Engine.TickInterval,
		ProgressInterval:    cfg.Engine.ProgressInterval,
		AmbientDuckFraction: cfg.Engine.AmbientDuckFraction,
	})
	defer eng.Dispose()

	if len(args) == 1 {
		if err := loadMix(eng, args[0]); err != nil {
			return err
		}
	}

	srv := api.New(cfg, eng)
	slog.Info("control API listening", slog.String("addr", cfg.API.Listen))
	if err := srv.Start(cfg.API.Listen); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
