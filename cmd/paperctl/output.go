package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// emit writes v as indented JSON under --json, otherwise the text form.
func emit(w io.Writer, v any, text string) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
