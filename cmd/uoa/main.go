package main

import "uoa-collector/cmd/uoa/commands"

func main() {
	commands.Execute()
}
