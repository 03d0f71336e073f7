package ast

import (
	"context"
	"errors"

	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

// IndexReferenceService answers reference queries from the SQLite index.
// References are matched by name: every indexed use of the identifier
// declared at the queried position counts.
type IndexReferenceService struct {
	manager *IndexManager
}

// NewIndexReferenceService builds a service over manager.
func NewIndexReferenceService(manager *IndexManager) *IndexReferenceService {
	return &IndexReferenceService{manager: manager}
}

// References brings the index up to date with snap, then lists the uses of
// the symbol whose name sits at offset. ok is false when there is none.
func (s *IndexReferenceService) References(ctx context.Context, snap editor.Snapshot, offset int) ([]refhints.Location, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := s.manager.IndexSnapshot(snap); err != nil {
		if errors.Is(err, ErrUnsupportedLanguage) {
			return nil, false, nil
		}
		return nil, false, err
	}
	store := s.manager.Store()
	sym, err := store.SymbolAt(s.manager.Normalize(snap.Path()), offset)
	if errors.Is(err, ErrNotIndexed) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	refs, err := store.ReferencesTo(sym.Name)
	if err != nil {
		return nil, false, err
	}
	locs := make([]refhints.Location, 0, len(refs))
	for _, ref := range refs {
		locs = append(locs, refhints.Location{
			Path:  ref.Path,
			Start: editor.Point{Line: ref.Line, Column: ref.Column},
			End:   editor.Point{Line: ref.Line, Column: ref.Column + len(ref.Name)},
		})
	}
	return locs, true, nil
}
