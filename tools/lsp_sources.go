package tools

import (
	"context"
	"errors"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"

	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

// LSPSymbolSource serves document symbols from a language server.
type LSPSymbolSource struct {
	Proxy *Proxy
}

// DocumentSymbols converts the server's tree into byte ranges of snap.
// Files without a registered server yield no symbols.
func (s *LSPSymbolSource) DocumentSymbols(ctx context.Context, snap editor.Snapshot) ([]refhints.DocumentSymbol, error) {
	symbols, err := s.Proxy.DocumentSymbols(ctx, snap)
	if errors.Is(err, ErrNoClient) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return convertSymbols(snap, symbols), nil
}

func convertSymbols(snap editor.Snapshot, symbols []protocol.DocumentSymbol) []refhints.DocumentSymbol {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]refhints.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, refhints.DocumentSymbol{
			Name:           sym.Name,
			Range:          rangeToBytes(snap, sym.Range),
			SelectionRange: rangeToBytes(snap, sym.SelectionRange),
			Children:       convertSymbols(snap, sym.Children),
		})
	}
	return out
}

// LSPOutlineSource derives outline entries from the server's top-level
// symbols. Outline has no context, so each call is bounded by Timeout.
type LSPOutlineSource struct {
	Proxy   *Proxy
	Timeout time.Duration
}

// Outline returns nothing when the server is missing, slow or failing.
func (s *LSPOutlineSource) Outline(snap editor.Snapshot) []refhints.OutlineEntry {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	symbols, err := s.Proxy.DocumentSymbols(ctx, snap)
	if err != nil || len(symbols) == 0 {
		return nil
	}
	entries := make([]refhints.OutlineEntry, 0, len(symbols))
	for _, sym := range symbols {
		r := rangeToBytes(snap, sym.Range)
		entries = append(entries, refhints.OutlineEntry{Start: r.Start, End: r.End})
	}
	return entries
}

// LSPReferenceService answers reference queries from a language server.
type LSPReferenceService struct {
	Proxy *Proxy
}

// References reports ok=false when no server handles the file or the server
// answered null.
func (s *LSPReferenceService) References(ctx context.Context, snap editor.Snapshot, offset int) ([]refhints.Location, bool, error) {
	locs, err := s.Proxy.References(ctx, snap, offsetToPosition(snap, offset))
	if errors.Is(err, ErrNoClient) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if locs == nil {
		return nil, false, nil
	}
	out := make([]refhints.Location, 0, len(locs))
	for _, loc := range locs {
		// Columns stay in UTF-16 units.
		out = append(out, refhints.Location{
			Path:  uriToPath(string(loc.URI)),
			Start: editor.Point{Line: int(loc.Range.Start.Line), Column: int(loc.Range.Start.Character)},
			End:   editor.Point{Line: int(loc.Range.End.Line), Column: int(loc.Range.End.Character)},
		})
	}
	return out, true, nil
}

func rangeToBytes(snap editor.Snapshot, r protocol.Range) refhints.Range {
	return refhints.Range{Start: positionToOffset(snap, r.Start), End: positionToOffset(snap, r.End)}
}

// offsetToPosition converts a byte offset into an LSP position, whose
// character counts UTF-16 code units.
func offsetToPosition(snap editor.Snapshot, offset int) protocol.Position {
	pt := snap.OffsetToPoint(offset)
	line := snap.Line(pt.Line)
	if pt.Column < len(line) {
		line = line[:pt.Column]
	}
	units := 0
	for _, r := range line {
		units += utf16.RuneLen(r)
	}
	return protocol.Position{Line: uint32(pt.Line), Character: uint32(units)}
}

// positionToOffset is the inverse of offsetToPosition. Characters past the
// end of the line clamp to it; a position inside a surrogate pair rounds
// up to the next rune.
func positionToOffset(snap editor.Snapshot, pos protocol.Position) int {
	line := snap.Line(int(pos.Line))
	want := int(pos.Character)
	units, col := 0, 0
	for col < len(line) && units < want {
		r, size := utf8.DecodeRuneInString(line[col:])
		units += utf16.RuneLen(r)
		col += size
	}
	return snap.PointToOffset(editor.Point{Line: int(pos.Line), Column: col})
}
