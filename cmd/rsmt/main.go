package main

import (
	"github.com/zkrollup-labs/rsmt/cmd/rsmt/cmd"
)

func main() {
	cmd.Execute()
}
