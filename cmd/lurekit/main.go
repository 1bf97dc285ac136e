package main

import "github.com/lurekit/lurekit/cmd/lurekit/cmd"

func main() {
	cmd.Execute()
}
