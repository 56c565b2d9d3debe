package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/goincubator/pkg/device"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.Ports()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.Description != "" && p.Description != p.Name {
					fmt.Fprintf(out, "%s\t%s\n", p.Name, p.Description)
				} else {
					fmt.Fprintln(out, p.Name)
				}
			}
			return nil
		},
	}
}
