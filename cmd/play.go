package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mixdeck/engine"
	"mixdeck/mixfile"
	"mixdeck/playback"

	"github.com/gopxl/beep/v2"
	"github.com/spf13/cobra"
)

var watchMix bool

// playCmd previews a mix through the local speakers
var playCmd = &cobra.Command{
	Use:   "play <mix.yaml>",
	Short: "Preview a mix through the local speakers",
	Long: `Play loads a YAML mix definition and previews it: the main recording
plays while triggers fire on their decks at the configured times, with
gain, mute, solo and ducking applied live.

With --watch the mix file is reloaded and playback restarted whenever
the file changes, so a mix can be edited while listening.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVarP(&watchMix, "watch", "w", false, "reload and restart when the mix file changes")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	path := args[0]

	driver, err := playback.NewDriver(beep.SampleRate(cfg.Audio.SampleRate))
	if err != nil {
		return fmt.Errorf("failed to start audio output: %w", err)
	}
	defer driver.Close()

	eng := engine.New(driver, engine.Options{
		TickInterval:        cfg.Engine.TickInterval,
		ProgressInterval:    cfg.Engine.ProgressInterval,
		AmbientDuckFraction: cfg.Engine.AmbientDuckFraction,
	})
	defer eng.Dispose()

	ended := make(chan struct{}, 1)
	eng.OnEnded(func() {
		select {
		case ended <- struct{}{}:
		default:
		}
	})
	eng.OnProgress(func(pos time.Duration) {
		fmt.Printf("\r  %s / %s ", formatPosition(pos), formatPosition(eng.Duration()))
	})

	if err := loadMix(eng, path); err != nil {
		return err
	}
	if err := eng.Play(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	var watchEvents <-chan string
	var watchErrors <-chan error
	if watchMix {
		w, err := mixfile.Watch(path)
		if err != nil {
			return fmt.Errorf("failed to watch mix file: %w", err)
		}
		defer w.Close()
		watchEvents = w.Events
		watchErrors = w.Errors
	}

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-signalChan:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			return nil
		case <-ended:
			fmt.Println("\nPlayback finished.")
			if !watchMix {
				return nil
			}
		case <-watchEvents:
			fmt.Println("\nMix file changed, reloading...")
			if err := loadMix(eng, path); err != nil {
				// The previous session is already torn down; report and
				// wait for the next edit.
				fmt.Printf("Reload failed: %v\n", err)
				continue
			}
			if err := eng.Play(); err != nil {
				return fmt.Errorf("failed to restart playback: %w", err)
			}
		case err := <-watchErrors:
			return fmt.Errorf("mix file watch failed: %w", err)
		}
	}
}

// loadMix parses a mix file into the engine and prints what is about to
// play.
func loadMix(eng *engine.Engine, path string) error {
	f, err := mixfile.Load(path)
	if err != nil {
		return err
	}
	mixCfg, err := f.EngineConfig()
	if err != nil {
		return err
	}
	if err := eng.Load(mixCfg); err != nil {
		return fmt.Errorf("failed to load mix: %w", err)
	}

	title := f.Title
	artist := ""
	if md, err := mixfile.Describe(mixCfg.MainURI); err == nil {
		if title == "" {
			title = md.Title
		}
		artist = md.Artist
	}
	if artist != "" {
		fmt.Printf("Now playing: %s by %s\n", title, artist)
	} else {
		fmt.Printf("Now playing: %s\n", title)
	}
	fmt.Printf("  duration %s, %d triggers\n", formatPosition(eng.Duration()), len(mixCfg.Triggers))
	return nil
}

// formatPosition renders a duration as m:ss for the progress display
func formatPosition(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
