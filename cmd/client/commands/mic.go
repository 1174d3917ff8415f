package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var micCmd = &cobra.Command{
	Use:   "mic",
	Short: "Stream the default microphone until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runMic,
}

func runMic(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	return s.run(func(ctx context.Context) error {
		if err := s.streamer.StartMicrophone(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.streamer.StopMicrophone()
	})
}
