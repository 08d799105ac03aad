//go:build ignore

// This program writes the sample inputs of every pipeline into testdata/,
// for trying commands by hand:
//
//	go run testdata/generate_fixtures.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klytics/xlpipe/internal/sample"
)

func main() {
	dir := filepath.Join("testdata", "fixtures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
		os.Exit(1)
	}

	for _, scenario := range sample.Scenarios {
		paths, err := sample.Generate(scenario, dir, sample.DefaultSeed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", scenario, err)
			os.Exit(1)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
	}

	fmt.Println("Test fixtures generated successfully.")
}
