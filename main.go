package main

import "TrinoEventPump/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
