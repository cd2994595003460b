package cli

import (
	"context"
	"fmt"
	"io"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are written to stdout as JSON with --format json, otherwise to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if format == "json" {
		f := &OutputFormatter{Format: "json", Writer: stdout}
		_ = f.Error(ErrorCode(err), err.Error(), nil)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}
