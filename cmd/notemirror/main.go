package main

import (
	"os"

	"github.com/notemirror/notemirror/internal/cli"
	"github.com/notemirror/notemirror/internal/log"
)

// versionTag is populated during link time
var versionTag = "master"

func main() {
	if err := cli.Run(versionTag); err != nil {
		log.Errorf("%s\n", err.Error())
		os.Exit(1)
	}
}
