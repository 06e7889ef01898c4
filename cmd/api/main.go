// Command api serves the stored climate, case, prediction and job run data over HTTP.
package main

import (
	"os"

	"github.com/tigerroll/arbovirus-pipeline/internal/app"
)

func main() {
	ctx, cancel := app.SignalContext()
	code := app.ServeAPI(ctx)
	cancel()
	os.Exit(code)
}
