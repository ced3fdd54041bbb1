package main

import "github.com/botonex/botonex/cmd"

func main() {
	cmd.Execute()
}
