package main

import "github.com/DomeLiquid/margin/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
