package cmd

import (
	"fmt"

	"github.com/rmichiels/amfloppy/bridge"
	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/register"
	"github.com/spf13/cobra"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Discover and report on connected USB bridge adapters",
	Long:  "List Greaseweazle-class USB-serial adapters attached to this machine and report the sample clock of each, without touching any drive.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := bridge.DiscoverPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no bridge adapter found")
			return nil
		}
		for _, p := range ports {
			client, err := bridge.Open(p.Name)
			if err != nil {
				fmt.Printf("%s: %v\n", p.Name, err)
				continue
			}
			fmt.Printf("%s: sample clock %d Hz\n", p.Name, client.SampleFreqHz())
			client.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

// openBridgeClient connects to portName, or to the first discovered
// Greaseweazle-class adapter if portName is empty.
func openBridgeClient(portName string) (*bridge.Client, error) {
	if portName != "" {
		return bridge.Open(portName)
	}
	ports, err := bridge.DiscoverPorts()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("cmd: no bridge adapter found")
	}
	return bridge.Open(ports[0].Name)
}

// newBridgeBus wraps client as a register.Bus.
func newBridgeBus(client *bridge.Client, events *kernel.Events, wake *kernel.Rendezvous) register.Bus {
	return bridge.NewBus(client, events, wake)
}
