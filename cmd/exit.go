package cmd

import (
	"context"

	"cmdwh/internal/pipeline"
	"cmdwh/internal/ui"
)

// shownError is an error already printed to the user. Execute exits without
// printing it again.
type shownError struct {
	error
}

func (e shownError) Unwrap() error { return e.error }

// runOne runs a single stage, renders what it produced and applies the exit
// policy selected by --strict.
func runOne(ctx context.Context, stage pipeline.Stage, render func(detail any)) error {
	result := pipeline.New(stage).Run(ctx)
	for _, s := range result.Stages {
		switch {
		case s.Detail != nil:
			render(s.Detail)
		case s.Fatal != nil:
			ui.ShowError(s.Fatal)
		}
	}
	return exitErr(result)
}

// exitErr marks the error of a stopped run as shown; the renderers print the
// fatal error of the stage that stopped it.
func exitErr(result pipeline.Result) error {
	err := result.ExitErr(strict)
	if err != nil && result.StoppedAt != "" {
		return shownError{err}
	}
	return err
}
