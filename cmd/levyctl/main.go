// Tourismlevy - Upper Austrian tourism levy service.
// Copyright (c) 2025 Law Digital Twin
// Licensed under the Apache License 2.0

// Command levyctl computes tourism levies from the command line, either
// against a local reference dataset or a running tourismlevy server.
package main

import (
	"os"

	"github.com/lawdigitaltwin/tourismlevy/cmd/levyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
