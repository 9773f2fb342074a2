package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/coral-mesh/symload/internal/cli"
	"github.com/coral-mesh/symload/internal/cli/helpers"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		var ee *helpers.ExitError
		if !errors.As(err, &ee) || !ee.Silent() {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(helpers.ExitCode(err))
	}
}
