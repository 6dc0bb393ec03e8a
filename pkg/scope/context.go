package scope

import (
	"strings"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

// Context identifies the caller on whose behalf an operation runs. It is
// supplied by the authentication layer; stratum trusts it and performs no
// credential verification of its own.
type Context struct {
	// OwnPaths is the caller's ownership path.
	OwnPaths string
	// Owner is the acting account id, stamped into audit fields.
	Owner string
}

// Degrade re-scopes the context to a descendant ownership path. The new path
// must extend the current one; anything else is a Conflict.
func (c Context) Degrade(newOwnPaths string) (Context, error) {
	if !strings.HasPrefix(newOwnPaths, c.OwnPaths) {
		return Context{}, errdef.Conflictf("own paths %q cannot be downgraded to %q", c.OwnPaths, newOwnPaths)
	}
	c.OwnPaths = newOwnPaths
	return c, nil
}
