package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/sprintbridge/backend/internal/shared/codec"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

// printResult writes v in the --output format.
func (gs *globalState) printResult(v any) error {
	return printValue(gs.stdOut, gs.flags.output, v)
}

func printValue(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case outputJSON:
		data, err = codec.Marshal(v)
		if err == nil {
			data = append(data, '\n')
		}
	case outputYAML, "":
		data, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
