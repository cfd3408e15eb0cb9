package main

import (
	"flag"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

type devicesCommand struct{}

// Implement command interface
func (cmd *devicesCommand) Name() string {
	return "devices"
}

func (cmd *devicesCommand) Help() string {
	return "Show the list of available audio devices"
}

func (cmd *devicesCommand) Register(fs *flag.FlagSet) {}

func (cmd *devicesCommand) Run() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	fmt.Println("Available devices:")
	for _, d := range devices {
		fmt.Printf("\t%s\tin: %d\tout: %d\trate: %v\n", d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
	return nil
}
