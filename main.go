package main

import "github.com/stategraph/stategraph/cmd"

func main() {
	cmd.Execute()
}
