package refhints

// Flatten collapses a symbol tree into an unordered set. It walks an
// explicit stack so adversarially deep trees cannot exhaust the goroutine
// stack.
func Flatten(symbols []DocumentSymbol) []FlatSymbol {
	if len(symbols) == 0 {
		return nil
	}
	flat := make([]FlatSymbol, 0, len(symbols))
	stack := make([]*DocumentSymbol, 0, len(symbols))
	for i := range symbols {
		stack = append(stack, &symbols[i])
	}
	for len(stack) > 0 {
		sym := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := range sym.Children {
			stack = append(stack, &sym.Children[i])
		}
		flat = append(flat, FlatSymbol{
			Name:           sym.Name,
			Range:          sym.Range,
			SelectionRange: sym.SelectionRange,
		})
	}
	return flat
}
