package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildJoinViewFlattensAndCollectsChoices(t *testing.T) {
	product := &Product{ID: "p1", SKU: "X1", Name: "Air Max 90", Color: "Blue", Photo: "shoe.png"}
	joins := []InventoryJoin{
		{
			Inventory: InventoryRecord{ID: "i1", VariantID: "v1", Quantity: 5, Reserved: 1},
			Variant:   &Variant{ID: "v1", ProductID: "p1", Size: "42"},
			Product:   product,
		},
		{
			Inventory: InventoryRecord{ID: "i2", VariantID: "v2", Quantity: 2},
			Variant:   &Variant{ID: "v2", ProductID: "p1", Size: "43"},
			Product:   product,
		},
	}
	view := buildJoinView(joins, func(productID, photo string) string {
		return "http://x/" + productID + "/" + photo
	})

	require.Len(t, view.Rows, 2)
	require.Equal(t, Row{
		SKU: "X1", Model: "Air Max 90", Color: "Blue",
		Size: "42", Quantity: 5, Reserved: 1,
		Image: "http://x/p1/shoe.png",
	}, view.Rows[0])
	require.Equal(t, []string{"Air Max 90"}, view.ModelChoices, "choices are deduplicated")
	require.Equal(t, []string{"Blue"}, view.ColorChoices)
	require.Zero(t, view.Dangling)
}

func TestBuildJoinViewKeepsDanglingRecords(t *testing.T) {
	joins := []InventoryJoin{
		{Inventory: InventoryRecord{ID: "i1", Quantity: 3}},
		{
			Inventory: InventoryRecord{ID: "i2", VariantID: "v1", Quantity: 1},
			Variant:   &Variant{ID: "v1", ProductID: "gone", Size: "40"},
		},
	}
	view := buildJoinView(joins, nil)

	require.Len(t, view.Rows, 2, "dangling records must stay visible")
	require.Equal(t, 2, view.Dangling)
	require.Empty(t, view.Rows[0].Size)
	require.Equal(t, "40", view.Rows[1].Size)
	require.Empty(t, view.Rows[1].SKU)
	require.Empty(t, view.ModelChoices)
}
