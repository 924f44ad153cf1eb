package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/pagesearch/internal/blocks"
	"github.com/Aman-CERP/pagesearch/internal/content"
)

// extract concatenates the searchable text of the page's blocks in the
// given areas, separated by single spaces. On failure it returns the
// reason to record.
func (ix *Indexer) extract(ctx context.Context, page *content.Page, areas []string) (string, Reason, error) {
	var pieces []string
	for _, area := range areas {
		blks, err := ix.content.Blocks(ctx, page, area)
		if err != nil {
			return "", ReasonBlocksError, fmt.Errorf("failed to load blocks of area %q: %w", area, err)
		}

		for _, b := range blks {
			ctrl, err := ix.blocks.Controller(b)
			if err != nil {
				if stderrors.Is(err, blocks.ErrUnknownType) {
					slog.Debug("unknown_block_type",
						slog.Int64("page_id", page.ID),
						slog.Int64("block_id", b.ID),
						slog.String("type", b.Type))
					continue
				}
				return "", ReasonExtractionError, err
			}

			text, searchable, err := blocks.Text(ctx, ctrl)
			if err != nil {
				return "", ReasonExtractionError, fmt.Errorf("block %d: %w", b.ID, err)
			}
			if !searchable || text == "" {
				continue
			}
			pieces = append(pieces, text)
		}
	}
	return strings.Join(pieces, " "), ReasonNone, nil
}

// dedupe appends the non-blank entries of extra to base, skipping ones
// already present. base is not modified.
func dedupe(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
