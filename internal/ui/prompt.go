package ui

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"cmdwh/internal/provision"
	"cmdwh/pkg/errors"
)

// Confirm asks a yes/no question.
func Confirm(message string, defaultValue bool) (bool, error) {
	answer := defaultValue
	prompt := &survey.Confirm{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, promptError(err)
	}
	return answer, nil
}

// Input displays a text input prompt
func Input(message, defaultValue, help string) (string, error) {
	var result string
	prompt := &survey.Input{Message: message, Default: defaultValue, Help: help}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return "", promptError(err)
	}
	return result, nil
}

// Password displays a password input prompt
func Password(message, help string) (string, error) {
	var result string
	prompt := &survey.Password{Message: message, Help: help}
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return "", promptError(err)
	}
	return result, nil
}

// Select displays a selection prompt
func Select(message string, options []string, defaultValue string) (string, error) {
	var result string
	prompt := &survey.Select{Message: message, Options: options, Default: defaultValue, PageSize: 10}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", promptError(err)
	}
	return result, nil
}

// StagingConfirmer lists the tables about to be rebuilt and asks before the
// full scan starts.
func StagingConfirmer() provision.Confirmer {
	return func(ctx context.Context, tables []string) (bool, error) {
		PrintSection("Staging tables to rebuild")
		for _, t := range tables {
			fmt.Fprintf(Output, "  • %s\n", t)
		}
		fmt.Fprintln(Output)
		ShowWarning("This scans every external file and replaces the tables above")
		return Confirm("Continue?", false)
	}
}

func promptError(err error) error {
	if err == terminal.InterruptErr {
		return errors.New(errors.ErrCodeInternal, "Cancelled by user")
	}
	return errors.Wrap(err, errors.ErrCodeInternal, "Prompt failed")
}
