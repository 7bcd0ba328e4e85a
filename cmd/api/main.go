package main

import "github.com/BradenHooton/lantern/cmd/api/cmd"

func main() {
	cmd.Execute()
}
