package main

import "github.com/forPelevin/placecut/internal/cli"

func main() {
	cli.Main()
}
