package main

import "github.com/RyanBlaney/sonido-listen/cmd"

func main() {
	cmd.Execute()
}
