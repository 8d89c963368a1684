package main

import (
	"encoding/json"
	"fmt"
	"io"
)

func printJSON(out io.Writer, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(out, string(raw))
	return nil
}
