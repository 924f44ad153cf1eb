package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// siteFile is the on-disk YAML layout of a site definition. A site may be
// split across several files in one directory; they are merged in name order.
type siteFile struct {
	DefaultTheme string     `yaml:"default_theme"`
	Groups       []groupDoc `yaml:"groups"`
	Themes       []themeDoc `yaml:"themes"`
	Pages        []pageDoc  `yaml:"pages"`
}

type groupDoc struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type themeDoc struct {
	Handle          string   `yaml:"handle"`
	Name            string   `yaml:"name"`
	SearchableAreas []string `yaml:"searchable_areas"`
}

type pageDoc struct {
	ID          int64             `yaml:"id"`
	ParentID    int64             `yaml:"parent_id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Path        string            `yaml:"path"`
	DatePublic  time.Time         `yaml:"date_public"`
	System      bool              `yaml:"system"`
	Theme       string            `yaml:"theme"`
	Attributes  map[string]string `yaml:"attributes"`
	Permissions *permissionsDoc   `yaml:"permissions"`
	Versions    []versionDoc      `yaml:"versions"`
}

type permissionsDoc struct {
	Read []int64 `yaml:"read"`
}

type versionDoc struct {
	ID          int64      `yaml:"id"`
	Approved    bool       `yaml:"approved"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Blocks      []blockDoc `yaml:"blocks"`
}

type blockDoc struct {
	ID     int64             `yaml:"id"`
	Area   string            `yaml:"area"`
	Type   string            `yaml:"type"`
	Fields map[string]string `yaml:"fields"`
}

// FileStore serves a site definition loaded from YAML. It is read-only and
// safe for concurrent use; Reload swaps the whole snapshot.
type FileStore struct {
	path string

	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	defaultTheme string
	ids          []int64
	pages        map[int64]*pageDoc
	themes       map[string]*Theme
	groups       map[int64]*Group
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads the site at path, which may be a YAML file or a
// directory of *.yaml / *.yml files.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFileStoreFromBytes builds a store from an in-memory YAML document.
func NewFileStoreFromBytes(data []byte) (*FileStore, error) {
	var doc siteFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse site definition: %w", err)
	}
	snap, err := buildSnapshot([]siteFile{doc})
	if err != nil {
		return nil, err
	}
	return &FileStore{snap: snap}, nil
}

// Path returns the file or directory the store was loaded from.
func (s *FileStore) Path() string {
	return s.path
}

// Reload re-reads the site definition from disk.
func (s *FileStore) Reload() error {
	if s.path == "" {
		return nil
	}

	files, err := siteFiles(s.path)
	if err != nil {
		return err
	}

	docs := make([]siteFile, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read site file %s: %w", f, err)
		}
		var doc siteFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse site file %s: %w", f, err)
		}
		docs = append(docs, doc)
	}

	snap, err := buildSnapshot(docs)
	if err != nil {
		return fmt.Errorf("invalid site definition in %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

func siteFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat content path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list content directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func buildSnapshot(docs []siteFile) (*snapshot, error) {
	snap := &snapshot{
		pages:  make(map[int64]*pageDoc),
		themes: make(map[string]*Theme),
		groups: map[int64]*Group{
			GroupGuest:          {ID: GroupGuest, Name: "Guest"},
			GroupRegistered:     {ID: GroupRegistered, Name: "Registered Users"},
			GroupAdministrators: {ID: GroupAdministrators, Name: "Administrators"},
		},
	}

	for _, doc := range docs {
		if doc.DefaultTheme != "" {
			snap.defaultTheme = doc.DefaultTheme
		}
		for _, g := range doc.Groups {
			if g.ID <= 0 {
				return nil, fmt.Errorf("group %q has invalid id %d", g.Name, g.ID)
			}
			snap.groups[g.ID] = &Group{ID: g.ID, Name: g.Name}
		}
		for _, th := range doc.Themes {
			if th.Handle == "" {
				return nil, fmt.Errorf("theme without handle")
			}
			snap.themes[th.Handle] = &Theme{
				Handle:          th.Handle,
				Name:            th.Name,
				SearchableAreas: th.SearchableAreas,
			}
		}
		for i := range doc.Pages {
			p := doc.Pages[i]
			if p.ID <= 0 {
				return nil, fmt.Errorf("page %q has invalid id %d", p.Name, p.ID)
			}
			if _, dup := snap.pages[p.ID]; dup {
				return nil, fmt.Errorf("duplicate page id %d", p.ID)
			}
			if !strings.HasPrefix(p.Path, "/") {
				return nil, fmt.Errorf("page %d path %q must start with /", p.ID, p.Path)
			}
			snap.pages[p.ID] = &p
			snap.ids = append(snap.ids, p.ID)
		}
	}

	sort.Slice(snap.ids, func(i, j int) bool { return snap.ids[i] < snap.ids[j] })
	return snap, nil
}

func (s *FileStore) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// PageIDs returns every page ID in ascending order.
func (s *FileStore) PageIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.current()
	ids := make([]int64, len(snap.ids))
	copy(ids, snap.ids)
	return ids, nil
}

// Page loads a page in the requested version state.
func (s *FileStore) Page(ctx context.Context, id int64, state VersionState) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := s.current().pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, ErrNotFound)
	}

	page := &Page{
		ID:          doc.ID,
		ParentID:    doc.ParentID,
		Name:        doc.Name,
		Description: doc.Description,
		Path:        doc.Path,
		DatePublic:  doc.DatePublic.UTC(),
		System:      doc.System,
		ThemeHandle: doc.Theme,
		Attributes:  copyAttributes(doc.Attributes),
	}
	if doc.Permissions != nil {
		page.Permissions = &Permissions{Read: append([]int64(nil), doc.Permissions.Read...)}
	}

	if v := selectVersion(doc.Versions, state); v != nil {
		page.Version = Version{ID: v.ID, Approved: v.Approved}
		if v.Name != "" {
			page.Name = v.Name
		}
		if v.Description != "" {
			page.Description = v.Description
		}
	}

	return page, nil
}

// selectVersion picks the approved version for VersionActive, falling back
// to the most recent (highest ID).
func selectVersion(versions []versionDoc, state VersionState) *versionDoc {
	var recent, approved *versionDoc
	for i := range versions {
		v := &versions[i]
		if recent == nil || v.ID > recent.ID {
			recent = v
		}
		if v.Approved && (approved == nil || v.ID > approved.ID) {
			approved = v
		}
	}
	if state == VersionActive && approved != nil {
		return approved
	}
	return recent
}

func copyAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Theme resolves the page's theme, or the site default. A site without any
// theme definition resolves to an empty "default" theme.
func (s *FileStore) Theme(ctx context.Context, page *Page) (*Theme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.current()

	handle := page.ThemeHandle
	if handle == "" {
		handle = snap.defaultTheme
	}
	if handle == "" {
		return &Theme{Handle: "default", Name: "Default"}, nil
	}

	th, ok := snap.themes[handle]
	if !ok {
		return nil, fmt.Errorf("theme %q: %w", handle, ErrNotFound)
	}
	out := *th
	out.SearchableAreas = append([]string(nil), th.SearchableAreas...)
	return &out, nil
}

// Blocks returns the blocks placed in area on the page's loaded version.
func (s *FileStore) Blocks(ctx context.Context, page *Page, area string) ([]*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := s.current().pages[page.ID]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", page.ID, ErrNotFound)
	}

	var blocks []*Block
	for _, v := range doc.Versions {
		if v.ID != page.Version.ID {
			continue
		}
		for _, b := range v.Blocks {
			if b.Area != area {
				continue
			}
			blocks = append(blocks, &Block{
				ID:     b.ID,
				Area:   b.Area,
				Type:   b.Type,
				Fields: copyAttributes(b.Fields),
			})
		}
	}
	return blocks, nil
}

// Group loads a permission group.
func (s *FileStore) Group(ctx context.Context, id int64) (*Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, ok := s.current().groups[id]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	out := *g
	return &out, nil
}
