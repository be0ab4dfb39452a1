package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
)

var jqQuery string

// wantJSON reports whether output should be JSON; --jq implies --json.
func wantJSON() bool {
	return jsonOutput || jqQuery != ""
}

// printJSON writes v as indented JSON, or the results of --jq over it.
func printJSON(v any) error {
	return writeJSON(os.Stdout, v, jqQuery)
}

func writeJSON(w io.Writer, v any, query string) error {
	if query == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	q, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("--jq: %w", err)
	}
	// gojq works on the generic JSON form
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return err
	}

	iter := q.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			if h, ok := err.(*gojq.HaltError); ok && h.Value() == nil {
				return nil
			}
			return fmt.Errorf("--jq: %w", err)
		}
		// strings print raw, like jq -r
		if s, ok := out.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		b, err := gojq.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	}
}
