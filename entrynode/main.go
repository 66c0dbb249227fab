package main

import (
	"context"
	"fmt"
	"os"

	"github.com/LumeraProtocol/entrynode/entrynode/cmd"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

func main() {
	defer errors.Recover(func(err error) {
		logtrace.Error(context.Background(), "entrynode panicked", logtrace.Fields{
			logtrace.FieldError:      err.Error(),
			logtrace.FieldStackTrace: errors.ErrorStack(err),
		})
		logtrace.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	})

	cmd.Execute()
}
