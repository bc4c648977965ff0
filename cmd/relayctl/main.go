package main

import "github.com/mcoot/gamerelay/internal/cli"

func main() {
	cli.Execute()
}
