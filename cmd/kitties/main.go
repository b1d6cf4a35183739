// Command kitties operates a kitty registry from the shell. Storage, the
// event archive and logging are configured through KITTYCORE_* variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"kittycore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if code := domain.CodeOf(err); code != domain.CodeUnknown {
			_, _ = fmt.Fprintf(stderr, "error: %v (code=%s)\n", err, code)
		} else {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}
