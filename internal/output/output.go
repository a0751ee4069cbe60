package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Stdout is the output path that selects standard output.
const Stdout = "-"

// Write stores content at path, creating parent directories. Path "-"
// writes to stdout instead.
func Write(path, content string, stdout io.Writer) error {
	if path == Stdout {
		if _, err := io.WriteString(stdout, content); err != nil {
			return fmt.Errorf("failed to write to stdout: %w", err)
		}
		if len(content) == 0 || content[len(content)-1] != '\n' {
			_, _ = io.WriteString(stdout, "\n")
		}
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
