package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raihanakbr/realtime-stream-client/internal/capture/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.ListDevices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEFAULT\tNAME\tHOST API\tCHANNELS\tRATE")
		for _, d := range devices {
			mark := ""
			if d.Default {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\n", mark, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}
