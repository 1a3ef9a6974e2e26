package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"mixdeck/engine"
	"mixdeck/mixfile"
	"mixdeck/render"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// renderCmd flattens a mix and submits it to the render service
var renderCmd = &cobra.Command{
	Use:   "render <mix.yaml>",
	Short: "Render a mix through the mixdown service",
	Long: `Render flattens a YAML mix definition into a mixdown plan, submits it
to the configured render service, and polls the job until it finishes.
The output URI is printed on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().String("render-url", "", "render service base URL")
	renderCmd.Flags().String("render-key", "", "render service API key")

	viper.BindPFlag("render.url", renderCmd.Flags().Lookup("render-url"))
	viper.BindPFlag("render.api_key", renderCmd.Flags().Lookup("render-key"))

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRender(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	f, err := mixfile.Load(args[0])
	if err != nil {
		return err
	}
	mixCfg, err := f.EngineConfig()
	if err != nil {
		return err
	}
	plan := engine.PlanFromConfig(mixCfg, f.PlanFX(), f.PlanOutExt())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := render.NewClient(cfg.Render.URL, cfg.Render.APIKey)

	jobID, err := client.Submit(ctx, plan)
	if err != nil {
		return fmt.Errorf("failed to submit mixdown: %w", err)
	}
	fmt.Printf("Submitted mixdown job %s (%d segments)\n", jobID, len(plan.Segments))

	job, err := client.PollUntilDone(ctx, jobID, cfg.Render.PollInterval)
	if err != nil {
		return fmt.Errorf("mixdown failed: %w", err)
	}

	fmt.Println(job.OutputURI)
	return nil
}
