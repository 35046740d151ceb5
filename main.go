package main

import "github.com/metal-toolbox/regiongen/cmd"

func main() {
	cmd.Execute()
}
