// Package permission decides whether a permission group may read a page.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/pagesearch/internal/content"
)

// maxDepth bounds the parent walk so a cyclic tree cannot hang evaluation.
const maxDepth = 256

// ErrCycle is returned when the parent chain of a page loops.
var ErrCycle = errors.New("permission inheritance cycle")

// Evaluator answers read-permission questions for a group.
type Evaluator interface {
	CanRead(ctx context.Context, groupID int64, page *content.Page) (bool, error)
}

// ACLEvaluator evaluates per-page read lists from the content tree.
// A page without its own list inherits its parent's; a root without any list
// is public (Guest). Administrators read everything.
type ACLEvaluator struct {
	store content.Store
}

var _ Evaluator = (*ACLEvaluator)(nil)

// NewACLEvaluator creates an evaluator backed by store.
func NewACLEvaluator(store content.Store) *ACLEvaluator {
	return &ACLEvaluator{store: store}
}

// CanRead reports whether groupID may read page.
func (e *ACLEvaluator) CanRead(ctx context.Context, groupID int64, page *content.Page) (bool, error) {
	if groupID == content.GroupAdministrators {
		return true, nil
	}

	perms, err := e.effective(ctx, page)
	if err != nil {
		return false, err
	}

	for _, g := range perms.Read {
		if g == groupID {
			return true, nil
		}
		// Anything Guest can read, every signed-in group can read.
		if g == content.GroupGuest && groupID != content.GroupGuest {
			return true, nil
		}
	}
	return false, nil
}

// effective resolves inherited permissions by walking up the parent chain.
func (e *ACLEvaluator) effective(ctx context.Context, page *content.Page) (*content.Permissions, error) {
	seen := make(map[int64]bool)
	current := page
	for depth := 0; depth < maxDepth; depth++ {
		if current.Permissions != nil {
			return current.Permissions, nil
		}
		if current.ParentID == 0 || current.ParentID == current.ID {
			return &content.Permissions{Read: []int64{content.GroupGuest}}, nil
		}
		if seen[current.ID] {
			return nil, fmt.Errorf("page %d: %w", page.ID, ErrCycle)
		}
		seen[current.ID] = true

		parent, err := e.store.Page(ctx, current.ParentID, content.VersionRecent)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent %d of page %d: %w", current.ParentID, page.ID, err)
		}
		current = parent
	}
	return nil, fmt.Errorf("page %d: %w", page.ID, ErrCycle)
}
