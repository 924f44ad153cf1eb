// Package content models the CMS content tree consumed by the indexer:
// pages, their approved versions, block areas, themes and permission groups.
package content

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a page, theme or group does not exist.
var ErrNotFound = errors.New("not found")

// VersionState selects which version of a page to load.
type VersionState int

const (
	// VersionActive is the approved version when one exists, otherwise the
	// most recent version.
	VersionActive VersionState = iota
	// VersionRecent is always the most recent version.
	VersionRecent
)

// Well-known permission groups.
const (
	GroupGuest          int64 = 1
	GroupRegistered     int64 = 2
	GroupAdministrators int64 = 3
)

// AttrExcludeSearchIndex marks a page as hidden from search.
const AttrExcludeSearchIndex = "exclude_search_index"

// Page is a node of the content tree as seen through one version.
type Page struct {
	ID          int64
	ParentID    int64
	Name        string
	Description string
	// Path is the materialized path; ancestors are prefixes.
	Path        string
	DatePublic  time.Time
	System      bool
	ThemeHandle string
	Attributes  map[string]string
	Version     Version
	// Permissions is nil when the page inherits from its parent.
	Permissions *Permissions
}

// Version identifies the loaded page version.
type Version struct {
	ID       int64
	Approved bool
}

// Permissions lists the groups allowed to read a page.
type Permissions struct {
	Read []int64
}

// Block is a content element placed in a named area of a page version.
type Block struct {
	ID     int64
	Area   string
	Type   string
	Fields map[string]string
}

// Theme is the page layout definition.
type Theme struct {
	Handle string
	Name   string
	// SearchableAreas are areas this layout adds to the indexed set.
	SearchableAreas []string
}

// Group is a permission group.
type Group struct {
	ID   int64
	Name string
}

// IsSystemPage reports whether the page is an internal/admin page.
func (p *Page) IsSystemPage() bool {
	return p.System
}

// IsApproved reports whether the loaded version is the approved one.
func (p *Page) IsApproved() bool {
	return p.Version.Approved
}

// AttributeValue returns the raw attribute value, or "" when unset.
func (p *Page) AttributeValue(key string) string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[key]
}

// BoolAttribute interprets an attribute as a checkbox.
func (p *Page) BoolAttribute(key string) bool {
	switch strings.ToLower(strings.TrimSpace(p.AttributeValue(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Store is the read side of the content tree.
type Store interface {
	// PageIDs returns every page ID in ascending order.
	PageIDs(ctx context.Context) ([]int64, error)

	// Page loads a page in the requested version state.
	// Returns an error wrapping ErrNotFound for unknown IDs.
	Page(ctx context.Context, id int64, state VersionState) (*Page, error)

	// Theme resolves the page's theme, or the site default.
	Theme(ctx context.Context, page *Page) (*Theme, error)

	// Blocks returns the blocks of one area of the page's loaded version,
	// in display order.
	Blocks(ctx context.Context, page *Page, area string) ([]*Block, error)

	// Group loads a permission group.
	Group(ctx context.Context, id int64) (*Group, error)
}

// CacheController is implemented by stores that keep a local cache which
// can be bypassed for the duration of a bulk operation.
type CacheController interface {
	// DisableLocalCache bypasses the cache until restore is called.
	DisableLocalCache() (restore func())
}
