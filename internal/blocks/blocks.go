// Package blocks maps block type handles to controllers and extracts the
// searchable text of a block. Block types resolve through a prioritized
// chain: site overrides, then packages, then core types.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Aman-CERP/pagesearch/internal/content"
	"github.com/Aman-CERP/pagesearch/internal/registry"
)

// Controller is implemented by every block type.
type Controller interface {
	Handle() string
}

// Searchable is the optional capability of block types that contribute
// text to the search index.
type Searchable interface {
	SearchableContent(ctx context.Context) (string, error)
}

// Factory builds the controller for one block instance.
type Factory func(b *content.Block) Controller

// ErrUnknownType is returned for block types no provider defines.
var ErrUnknownType = errors.New("unknown block type")

// Types is the block type registry.
type Types struct {
	site *registry.MapProvider[Factory]
	pkg  *registry.MapProvider[Factory]
	core *registry.MapProvider[Factory]
	reg  *registry.Registry[Factory]
}

// NewTypes builds the registry with the core types. searchableFields maps a
// block type handle to the field its text is read from; it is applied as a
// site override on top of any existing definition.
func NewTypes(searchableFields map[string]string) *Types {
	t := &Types{
		site: registry.NewMapProvider[Factory]("site"),
		pkg:  registry.NewMapProvider[Factory]("package"),
		core: registry.NewMapProvider[Factory]("core"),
	}
	t.reg = registry.New[Factory](t.site, t.pkg, t.core)

	t.core.
		Register("content", fieldFactory("content", "content")).
		Register("html", fieldFactory("html", "html")).
		Register("image", plainFactory("image")).
		Register("page_list", plainFactory("page_list")).
		Register("autonav", plainFactory("autonav"))

	handles := make([]string, 0, len(searchableFields))
	for h := range searchableFields {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	for _, h := range handles {
		t.OverrideSearchableField(h, searchableFields[h])
	}

	return t
}

// RegisterPackageType adds a block type shipped by a package.
func (t *Types) RegisterPackageType(handle string, f Factory) {
	t.pkg.Register(handle, f)
}

// OverrideSearchableField makes handle searchable from field at site level.
// Existing types keep their controller and gain the capability; unknown
// handles become plain field types.
func (t *Types) OverrideSearchableField(handle, field string) {
	if _, err := t.reg.Resolve(handle); err != nil {
		t.site.Register(handle, fieldFactory(handle, field))
		return
	}
	t.site.RegisterExtension(handle, func(base Factory) Factory {
		return func(b *content.Block) Controller {
			return &overrideBlock{Controller: base(b), text: b.Fields[field]}
		}
	})
}

// Controller returns the controller for b.
func (t *Types) Controller(b *content.Block) (Controller, error) {
	f, err := t.reg.Resolve(b.Type)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w: %s", b.ID, ErrUnknownType, b.Type)
	}
	return f(b), nil
}

// Handles lists every resolvable block type.
func (t *Types) Handles() []string {
	return t.reg.Names()
}

// Text extracts the normalized searchable text of a controller. The second
// result is false when the block type has no searchable capability.
func Text(ctx context.Context, c Controller) (string, bool, error) {
	s, ok := c.(Searchable)
	if !ok {
		return "", false, nil
	}
	raw, err := s.SearchableContent(ctx)
	if err != nil {
		return "", true, fmt.Errorf("block type %s: %w", c.Handle(), err)
	}
	return PlainText(raw), true, nil
}

// fieldBlock reads its searchable content from one field.
type fieldBlock struct {
	handle string
	text   string
}

func (b *fieldBlock) Handle() string { return b.handle }

func (b *fieldBlock) SearchableContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.text, nil
}

func fieldFactory(handle, field string) Factory {
	return func(b *content.Block) Controller {
		return &fieldBlock{handle: handle, text: b.Fields[field]}
	}
}

// plainBlock has no searchable content.
type plainBlock struct {
	handle string
}

func (b *plainBlock) Handle() string { return b.handle }

func plainFactory(handle string) Factory {
	return func(*content.Block) Controller {
		return &plainBlock{handle: handle}
	}
}

// overrideBlock adds searchable text to a wrapped controller. When the
// wrapped type is already searchable, both texts are kept.
type overrideBlock struct {
	Controller
	text string
}

func (b *overrideBlock) SearchableContent(ctx context.Context) (string, error) {
	if s, ok := b.Controller.(Searchable); ok {
		base, err := s.SearchableContent(ctx)
		if err != nil {
			return "", err
		}
		if base != "" {
			return base + " " + b.text, nil
		}
	}
	return b.text, nil
}
