//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Harvest runs a department scan with the built binary. DEPARTMENT selects
// the department and MAX_ID bounds the scan; other settings come from the
// config file and environment.
func Harvest() error {
	mg.Deps(Build, Init)
	dept, maxID := os.Getenv("DEPARTMENT"), os.Getenv("MAX_ID")
	if dept == "" || maxID == "" {
		return fmt.Errorf("set DEPARTMENT and MAX_ID")
	}
	return sh.RunV(filepath.Join(binDir, binName), "scan", "--department", dept, "--max-id", maxID, "--out-dir", outDir)
}

// Resolve lists the targets a names file resolves to without fetching.
// NAMES points at the file.
func Resolve() error {
	mg.Deps(Build)
	names := os.Getenv("NAMES")
	if names == "" {
		return fmt.Errorf("set NAMES to a .txt, .csv, or .yaml file of names")
	}
	return sh.RunV(filepath.Join(binDir, binName), "names", "--file", names, "--resolve-only")
}
