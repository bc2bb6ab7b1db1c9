package conversation

import (
	"fmt"
	"os"
)

// RoleFile supplies the system prompt. The file is re-read on every call so
// edits take effect on the next turn without a restart.
type RoleFile struct {
	Path string
}

// Load returns the file contents verbatim
func (r RoleFile) Load() (string, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read role file %s: %w", r.Path, err)
	}
	return string(data), nil
}
