// Idiomatic entrypoint for Cobra CLI that delegates handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/mblo/sfctss/cmd"
)

func main() {
	cmd.Execute()
}
