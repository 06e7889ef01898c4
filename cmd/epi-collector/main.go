// Command epi-collector collects recent weekly arbovirus case counts for every configured location.
package main

import (
	"os"

	"github.com/tigerroll/arbovirus-pipeline/internal/app"
	"github.com/tigerroll/arbovirus-pipeline/internal/job"
)

func main() {
	ctx, cancel := app.SignalContext()
	code := app.RunJob(ctx, job.EpiCollectorJob)
	cancel()
	os.Exit(code)
}
