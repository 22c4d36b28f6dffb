package inventory

// joinView is the flattened row set one listing query filters, together with
// the resolver candidate sets collected from the same pass so filter
// resolution and row filtering see a single consistent snapshot. It is
// rebuilt per query; the underlying store can change between calls.
type joinView struct {
	Rows         []Row
	ModelChoices []string
	ColorChoices []string
	Dangling     int
}

// buildJoinView flattens joined inventory records into rows. A record whose
// variant or product is missing still produces a row with the corresponding
// fields absent; dangling records must stay visible for audit.
func buildJoinView(joins []InventoryJoin, imageURL func(productID, photo string) string) joinView {
	view := joinView{Rows: make([]Row, 0, len(joins))}
	seenModels := map[string]struct{}{}
	seenColors := map[string]struct{}{}

	for _, j := range joins {
		row := Row{
			Quantity: j.Inventory.Quantity,
			Reserved: j.Inventory.Reserved,
		}
		if j.Variant != nil {
			row.Size = j.Variant.Size
		}
		if j.Product != nil {
			p := j.Product
			row.SKU = p.SKU
			row.Model = p.Name
			row.Color = p.Color
			row.Gender = p.Gender
			row.Cost = p.Cost
			row.Price = p.Price
			if p.Photo != "" && imageURL != nil {
				row.Image = imageURL(p.ID, p.Photo)
			}
			if p.Name != "" {
				if _, ok := seenModels[p.Name]; !ok {
					seenModels[p.Name] = struct{}{}
					view.ModelChoices = append(view.ModelChoices, p.Name)
				}
			}
			if p.Color != "" {
				if _, ok := seenColors[p.Color]; !ok {
					seenColors[p.Color] = struct{}{}
					view.ColorChoices = append(view.ColorChoices, p.Color)
				}
			}
		}
		if j.Variant == nil || j.Product == nil {
			view.Dangling++
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}
