package main

import (
	"os"

	"github.com/gnolang/cegar/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
