// Command cpsync imports Control Plan workbooks from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// reportError prints err as-is, then the mapped message when there is one.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", err)
	if reconcile.IsUserFacing(err) {
		fmt.Fprintln(w, reconcile.FormatUserError(err))
	}
}
