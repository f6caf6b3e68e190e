package main

import (
	"os"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
