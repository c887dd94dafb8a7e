package main

import "github.com/bryanchriswhite/RiverLayout/cmd/riverlayout/commands"

func main() {
	commands.Execute()
}
