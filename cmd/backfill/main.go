// Command backfill loads historical climate and case data, resuming from the latest stored date.
package main

import (
	"os"

	"github.com/tigerroll/arbovirus-pipeline/internal/app"
	"github.com/tigerroll/arbovirus-pipeline/internal/job"
)

func main() {
	ctx, cancel := app.SignalContext()
	code := app.RunJob(ctx, job.BackfillJob)
	cancel()
	os.Exit(code)
}
