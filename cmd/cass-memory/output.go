package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cass-memory/cass-memory/internal/envelope"
)

// emit writes a JSON envelope when --json is set and err is non-nil or
// jsonOutput forces structured output on success; otherwise it prints a
// plain error to stderr. It always returns a non-nil error on failure so
// cobra sets a non-zero exit code, and sets the documented validation-
// failure exit code when the underlying error is caller input.
func emit(cmd *cobra.Command, command string, data any, err error) error {
	if err == nil {
		if jsonOutput {
			return writeEnvelope(envelope.Ok(command, data))
		}
		return nil
	}

	env := envelope.FromTaxonomyError(command, err)
	if jsonOutput {
		if writeErr := writeEnvelope(env); writeErr != nil {
			return writeErr
		}
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}

	if env.Error != nil && env.Error.Code == "INVALID_INPUT" {
		os.Exit(envelope.ExitValidationFailure)
	}
	return errors.New(command + " failed")
}

func writeEnvelope(env envelope.Envelope) error {
	data, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
