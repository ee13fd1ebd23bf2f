package main

import "mailprobe/cmd"

func main() {
	cmd.Execute()
}
