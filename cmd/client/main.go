// Package main provides the streaming client CLI.
//
// Usage:
//
//	stream-client [flags] <command> [args]
//
// Commands:
//
//	mic      - stream the default microphone until interrupted
//	file     - stream a WAV or MP3 file paced at real time
//	devices  - list audio input devices
package main

import (
	"fmt"
	"os"

	"github.com/raihanakbr/realtime-stream-client/cmd/client/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
