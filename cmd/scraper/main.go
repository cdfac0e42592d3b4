// Package main is the scraper binary.
package main

import (
	"os"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
