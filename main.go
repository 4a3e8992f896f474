package main

import "github.com/rmichiels/amfloppy/cmd"

func main() {
	cmd.Execute()
}
