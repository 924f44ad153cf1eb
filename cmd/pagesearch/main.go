// Package main provides the entry point for the pagesearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/pagesearch/cmd/pagesearch/cmd"
	"github.com/Aman-CERP/pagesearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
