// Package directory provides read-only branch and product lookups owned by the
// surrounding application: a PostgreSQL reader over the shared tables, an HTTP
// client for a remote directory service, and a static set for tests and demos.
package directory

import (
	"fmt"
	"strings"

	"branch-supply/internal/core"
)

// CentralBranchName is the conventional name of the central branch when no
// branch carries the central flag.
const CentralBranchName = "Matriz"

// pickCentral returns the active branch flagged central, falling back to the
// active branch named CentralBranchName.
func pickCentral(branches []core.Branch) (*core.Branch, error) {
	var byName *core.Branch
	for i := range branches {
		b := branches[i]
		if !b.IsActive {
			continue
		}
		if b.IsCentral {
			return &b, nil
		}
		if byName == nil && strings.EqualFold(strings.TrimSpace(b.Name), CentralBranchName) {
			byName = &b
		}
	}
	if byName != nil {
		return byName, nil
	}
	return nil, fmt.Errorf("central branch: %w", core.ErrNotFound)
}
