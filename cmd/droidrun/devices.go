package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"droidrun/internal/device"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected adb devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := device.ListDevices(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("no devices connected")
				return nil
			}
			for _, d := range devices {
				marker := green("●")
				if d.State != "device" {
					marker = yellow("●")
				}
				fmt.Printf("%s %s\t%s\n", marker, d.Serial, d.State)
			}
			return nil
		},
	}
}
