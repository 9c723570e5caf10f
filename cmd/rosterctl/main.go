package main

import "github.com/mcoot/rosterbot/internal/cli"

func main() {
	cli.Execute()
}
