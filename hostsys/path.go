package hostsys

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validatePath resolves path against root, rejecting anything that would
// escape the jail, guarding host-file syscalls.
func validatePath(root, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("hostsys: filesystem root not configured")
	}
	if path == "" {
		return "", fmt.Errorf("hostsys: empty file path")
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("hostsys: path %q contains a '..' component", path)
	}
	path = strings.TrimPrefix(path, "/")

	full := filepath.Clean(filepath.Join(root, path))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("hostsys: failed to resolve filesystem root: %w", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("hostsys: failed to resolve path %q: %w", path, err)
	}
	if absFull != absRoot && !strings.HasPrefix(absFull, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("hostsys: path %q escapes filesystem root", path)
	}
	return absFull, nil
}
