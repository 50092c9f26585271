// Copyright 2025 Joseph Cumines
//
// Listener port resolution, including per-worktree port registries

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// PortsFile is the name of the worktree port registry, stored directly in
// the worktree base directory. It maps worktree names to ports.
const PortsFile = ".ports.json"

// ResolvePort returns the bridge listener port: ABU_PORT if set, else the
// entry for the current worktree in the registry under ABU_WORKTREE_BASE,
// else DefaultPort. A non-nil error reports an unparsable ABU_PORT, in
// which case the returned port is the fallback.
func ResolvePort() (int, error) {
	if os.Getenv("ABU_PORT") != "" {
		port, err := getEnvAsPort("ABU_PORT", DefaultPort)
		if err == nil {
			return port, nil
		}
		return worktreePortOr(DefaultPort), err
	}
	return worktreePortOr(DefaultPort), nil
}

func worktreePortOr(defaultPort int) int {
	base := os.Getenv("ABU_WORKTREE_BASE")
	if base == "" {
		return defaultPort
	}
	dir, err := os.Getwd()
	if err != nil {
		return defaultPort
	}
	if port, ok := WorktreePort(base, WorktreeName(base, dir)); ok {
		return port
	}
	return defaultPort
}

// WorktreeName returns the top-level directory name of dir below base, or
// "" if dir is not strictly inside base.
func WorktreeName(base, dir string) string {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	name, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return name
}

// WorktreePort looks name up in base's port registry. A missing or
// malformed registry has no entries.
func WorktreePort(base, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(base, PortsFile))
	if err != nil {
		return 0, false
	}
	var ports map[string]int
	if err := json.Unmarshal(data, &ports); err != nil {
		return 0, false
	}
	port, ok := ports[name]
	if !ok || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
