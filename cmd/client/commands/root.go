package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/raihanakbr/realtime-stream-client/internal/config"
)

var (
	// Global flags
	cfgFile        string
	envFile        string
	serverURL      string
	chunkSize      int
	sampleRate     int
	reconnectDelay time.Duration
	metricsAddr    string
	logLevel       string
	logFormat      string
	verbose        bool

	// Global configuration
	globalConfig *config.Config
	logger       *slog.Logger
	closeLog     func() error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stream-client",
	Short: "Stream live or recorded audio to a realtime transcription service",
	Long: `stream-client captures audio from the microphone or a file, converts it to
16-bit PCM, and streams it over a websocket to a transcription service. Partial
transcripts are shown as they arrive; completed sentences are kept.

The connection is re-established automatically whenever it drops.

Examples:
  # Stream the default microphone until Ctrl+C
  stream-client mic

  # Stream a recording against a remote service
  stream-client --server-url ws://stt.example.com:8989 file interview.wav

  # Expose Prometheus metrics while streaming
  stream-client --metrics-addr :9090 mic
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Command returns the root cobra command
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if closeLog != nil {
		closeLog()
	}
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "env file loaded before reading STREAM_* variables")
	flags.StringVarP(&serverURL, "server-url", "s", "", "transcription service websocket URL")
	flags.IntVar(&chunkSize, "chunk-size", 0, "samples per frame")
	flags.IntVar(&sampleRate, "sample-rate", 0, "microphone sample rate in Hz")
	flags.DurationVar(&reconnectDelay, "reconnect-delay", 0, "delay between reconnect attempts")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(micCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(devicesCmd)
}

// initConfig loads the configuration and applies flags that were set
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server-url") {
		cfg.Server.URL = serverURL
	}
	if flags.Changed("chunk-size") {
		cfg.Audio.ChunkSize = chunkSize
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.TargetSampleRate = sampleRate
	}
	if flags.Changed("reconnect-delay") {
		cfg.Server.ReconnectDelay = reconnectDelay
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger, closeLog, err = config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	globalConfig = cfg
	return nil
}
