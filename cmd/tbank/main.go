package main

import "github.com/mcoot/tabletop-bank/internal/cli"

func main() {
	cli.Execute()
}
