package util

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSONAtomic writes v as indented JSON, used for job and repair reports.
func WriteJSONAtomic(path string, v any) error {
	return writeAtomic(path, ".report-*.json", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	})
}
