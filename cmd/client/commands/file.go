package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	connectTimeout time.Duration
	linger         time.Duration
)

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Stream a WAV or MP3 file paced at real time",
	Long: `Decode a WAV or MP3 file and stream it in frames at its native sample rate,
waiting between frames so the service receives it at real-time speed.

Frames produced while the connection is down are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

func init() {
	fileCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 5*time.Second, "wait this long for the connection before streaming")
	fileCmd.Flags().DurationVar(&linger, "linger", 2*time.Second, "keep receiving transcripts this long after the file ends")
}

func runFile(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	return s.run(func(ctx context.Context) error {
		if !s.waitOpen(ctx, connectTimeout) {
			logger.Warn("Not connected yet, frames will be dropped until the connection opens")
		}

		if err := s.streamer.StreamFile(ctx, args[0]); err != nil {
			return err
		}
		if err := s.streamer.Wait(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
		return nil
	})
}
