// Command incubatord runs the incubator control loop against a serial MCU
// or a simulated incubator.
package main

import "github.com/itohio/goincubator/incubatord/cmd"

func main() {
	cmd.Execute()
}
