package blocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/content"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraph and break", "<p>Hello</p><br>World", "Hello World"},
		{"self closing break", "one<br/>two<br />three", "one two three"},
		{"spaced closing tags", "<div>a</ div><p>b</ p>", "a b"},
		{"uppercase and attributes", `<P class="x">Up</P><DIV id="d">Down</DIV>`, "Up Down"},
		{"inline tags do not split words", "Hel<b>lo</b> <em>there</em>", "Hello there"},
		{"entities decoded", "Fish &amp; Chips&nbsp;today", "Fish & Chips today"},
		{"whitespace collapsed", "  a \n\t b  ", "a b"},
		{"param is not p", "<param>x</param>y", "xy"},
		{"script dropped", "<script>alert(1)</script>safe", "safe"},
		{"escaped script dropped", "&lt;script&gt;alert(1)&lt;/script&gt;safe", "safe"},
		{"escaped paragraphs split words", "&lt;p&gt;Hello&lt;/p&gt;World", "Hello World"},
		{"double escaped markup", "&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt; text", "bold text"},
		{"escaped comparison kept", "a &lt; b", "a < b"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestTypes_CoreTypes(t *testing.T) {
	types := NewTypes(nil)
	ctx := context.Background()

	// Given: a content block
	ctrl, err := types.Controller(&content.Block{ID: 1, Type: "content", Fields: map[string]string{"content": "<p>Hi</p>"}})
	require.NoError(t, err)

	// Then: it is searchable and normalized
	text, ok, err := Text(ctx, ctrl)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hi", text)

	// And: an image block has no capability
	ctrl, err = types.Controller(&content.Block{ID: 2, Type: "image", Fields: map[string]string{"alt": "A cat"}})
	require.NoError(t, err)
	_, ok, err = Text(ctx, ctrl)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "image", ctrl.Handle())

	assert.Equal(t, []string{"autonav", "content", "html", "image", "page_list"}, types.Handles())
}

func TestTypes_UnknownType(t *testing.T) {
	types := NewTypes(nil)

	_, err := types.Controller(&content.Block{ID: 9, Type: "carousel"})

	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestTypes_SiteOverrideExtendsCoreType(t *testing.T) {
	// Given: a site override making images searchable through alt text
	types := NewTypes(map[string]string{"image": "alt", "faq": "entries"})
	ctx := context.Background()

	ctrl, err := types.Controller(&content.Block{Type: "image", Fields: map[string]string{"alt": "A <b>cat</b>"}})
	require.NoError(t, err)

	// Then: the core controller is kept and gains text
	assert.Equal(t, "image", ctrl.Handle())
	text, ok, err := Text(ctx, ctrl)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A cat", text)

	// And: an unknown handle becomes a field type
	ctrl, err = types.Controller(&content.Block{Type: "faq", Fields: map[string]string{"entries": "Q A"}})
	require.NoError(t, err)
	text, _, err = Text(ctx, ctrl)
	require.NoError(t, err)
	assert.Equal(t, "Q A", text)
}

func TestTypes_OverrideOnSearchableTypeKeepsBoth(t *testing.T) {
	types := NewTypes(map[string]string{"content": "summary"})

	ctrl, err := types.Controller(&content.Block{Type: "content", Fields: map[string]string{"content": "<p>Body</p>", "summary": "Short"}})
	require.NoError(t, err)
	text, _, err := Text(context.Background(), ctrl)

	require.NoError(t, err)
	assert.Equal(t, "Body Short", text)
}

type failingBlock struct{}

func (failingBlock) Handle() string { return "broken" }
func (failingBlock) SearchableContent(context.Context) (string, error) {
	return "", errors.New("render failed")
}

func TestTypes_PackageTypeAndFailure(t *testing.T) {
	types := NewTypes(nil)
	types.RegisterPackageType("broken", func(*content.Block) Controller { return failingBlock{} })

	ctrl, err := types.Controller(&content.Block{Type: "broken"})
	require.NoError(t, err)

	_, ok, err := Text(context.Background(), ctrl)
	assert.True(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render failed")
}
