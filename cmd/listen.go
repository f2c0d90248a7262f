package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-listen/capture"
	"github.com/RyanBlaney/sonido-listen/capture/portaudio"
	"github.com/RyanBlaney/sonido-listen/config"
	"github.com/RyanBlaney/sonido-listen/logging"
	"github.com/RyanBlaney/sonido-listen/pitch"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture audio and print the dominant frequencies",
	Long: `Opens the configured source, then repeatedly captures a window, decimates it,
transforms it and prints the strongest frequencies until interrupted.`,
	Example: `  sonido-listen listen
  sonido-listen listen --source wav --wav-path tuning.wav --loop
  sonido-listen listen --source sine --tone 440 --peaks 1 -o json`,
	RunE: runListen,
}

func init() {
	flags := listenCmd.Flags()

	flags.String("source", config.SourcePortAudio, "capture source (portaudio, wav, sine)")
	flags.Int("target-rate", 2000, "analysis sample rate in Hz, at most 8000")
	flags.Int("sample-size", 1024, "raw samples captured per window")
	flags.Int("peaks", 3, "frequencies reported per window")
	flags.String("window", "none", "analysis window (none, hann, hamming, bartlett)")
	flags.String("backend", "recursive", "FFT backend (recursive, go-dsp, gonum)")
	flags.Duration("read-timeout", 2*time.Second, "give up on a window after this long, 0 waits forever")
	flags.String("wav-path", "", "WAV file for the wav source")
	flags.Bool("loop", false, "restart the WAV file at its end")
	flags.Float64("tone", 440, "frequency of the sine source in Hz")
	flags.Bool("remove-dc", false, "high-pass each window to suppress a DC offset")
	flags.Bool("refine", false, "also report parabolic-interpolated frequencies")
	flags.Int("count", 0, "stop after this many readings, 0 runs until interrupted")

	annotate(flags, "source", "capture.source")
	annotate(flags, "target-rate", "capture.target_sample_rate")
	annotate(flags, "sample-size", "analysis.sample_size")
	annotate(flags, "peaks", "analysis.peaks")
	annotate(flags, "window", "analysis.window")
	annotate(flags, "backend", "analysis.backend")
	annotate(flags, "read-timeout", "capture.read_timeout")
	annotate(flags, "wav-path", "capture.wav_path")
	annotate(flags, "loop", "capture.loop")
	annotate(flags, "tone", "capture.sine_frequency")
	annotate(flags, "remove-dc", "analysis.remove_dc")
	annotate(flags, "refine", "analysis.refine")

	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}

	logger := logging.WithFields(logging.Fields{"component": "listen"})

	device, err := newDevice(cfg)
	if err != nil {
		return err
	}

	session := capture.NewSession(device, capture.AlwaysAuthorized, cfg.SessionOptions()...)
	if err := session.Open(cfg.Capture.TargetSampleRate); err != nil {
		return fmt.Errorf("failed to open capture session: %w", err)
	}
	defer session.Close()

	listener, err := pitch.NewListener(session, cfg.ListenerConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"source":      cfg.Capture.Source,
		"target_rate": cfg.Capture.TargetSampleRate,
	})

	printer := newPrinter(cmd.OutOrStdout(), cfg.Output)
	readings := 0
	err = listener.Run(ctx, func(r *pitch.Reading) {
		if err := printer(r); err != nil {
			logger.Error(err, "Failed to write reading")
		}
		readings++
		if count > 0 && readings >= count {
			stop()
		}
	})

	st := session.Stats()
	logger.Info("Listening finished", logging.Fields{
		"readings": readings,
		"captured": st.Captured,
		"dropped":  st.Dropped,
	})

	if errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, capture.ErrDevice) && errors.Is(err, io.EOF) {
		// the wav source ran out of samples
		return nil
	}
	return err
}

func newDevice(cfg *config.Config) (capture.Device, error) {
	switch cfg.Capture.Source {
	case config.SourcePortAudio:
		return portaudio.NewDevice(), nil
	case config.SourceWAV:
		return capture.NewWAVDevice(cfg.Capture.WAVPath,
			capture.WithRealTime(cfg.Capture.RealTime),
			capture.WithLoop(cfg.Capture.Loop)), nil
	case config.SourceSine:
		return capture.NewToneDevice(cfg.Capture.SineFrequency, 8000, cfg.Capture.RealTime), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Capture.Source)
	}
}

type printFunc func(*pitch.Reading) error

func newPrinter(w io.Writer, format string) printFunc {
	if format == "json" {
		enc := json.NewEncoder(w)
		return func(r *pitch.Reading) error { return enc.Encode(r) }
	}

	return func(r *pitch.Reading) error {
		if r.Silent {
			_, err := fmt.Fprintf(w, "%s  silent\n", r.Timestamp.Format("15:04:05.000"))
			return err
		}
		freqs := make([]string, len(r.Frequencies))
		for i, f := range r.Frequencies {
			freqs[i] = fmt.Sprintf("%5d Hz", f)
		}
		line := fmt.Sprintf("%s  %s  level %.0f",
			r.Timestamp.Format("15:04:05.000"), strings.Join(freqs, "  "), r.Level)
		if len(r.Refined) > 0 {
			line += fmt.Sprintf("  refined %.1f Hz", r.Refined[0])
		}
		_, err := fmt.Fprintln(w, line)
		return err
	}
}
