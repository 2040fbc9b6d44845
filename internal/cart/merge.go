package cart

import (
	"github.com/emberthread/storefront/pkg/models"
)

type mergeKey struct {
	productID string
	size      string
	color     string
}

// Merge unifies a client-local cart snapshot with the customer's persisted
// cart after sign-in. Lines with the same product, size and color have their
// quantities summed; the remote row keeps its identity so existing IDs stay
// stable. Local-only lines are appended after the remote lines in their
// original order. Merge never mutates its inputs.
func Merge(local, remote []models.CartItem) []models.CartItem {
	merged := make([]models.CartItem, 0, len(local)+len(remote))
	index := make(map[mergeKey]int, len(remote))

	for _, item := range remote {
		index[keyOf(item)] = len(merged)
		merged = append(merged, item)
	}

	for _, item := range local {
		if at, ok := index[keyOf(item)]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[keyOf(item)] = len(merged)
		merged = append(merged, item)
	}

	return merged
}

func keyOf(item models.CartItem) mergeKey {
	return mergeKey{productID: item.ProductID, size: item.Size, color: item.Color}
}
