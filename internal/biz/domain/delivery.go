package domain

import "strings"

// DeliveryUnit is one message the transport should emit for a reveal
type DeliveryUnit struct {
	Grouped bool        // album of groupable items
	Items   []MediaItem // single element unless Grouped
}

// DeliveryPlan is the ordered set of delivery units for one reveal
type DeliveryPlan struct {
	Units []DeliveryUnit
}

// Render assembles the delivery plan for a whisper's content.
// A single item becomes one unit of its own kind. With multiple items, all
// groupable items (photos, videos) form one grouped unit carrying only the
// first item's caption; every other item is a standalone unit, in original
// order, after the grouped unit.
func Render(items []MediaItem) DeliveryPlan {
	if len(items) == 1 {
		return DeliveryPlan{Units: []DeliveryUnit{{Items: items}}}
	}

	var album []MediaItem
	var standalone []MediaItem

	for i, item := range items {
		if item.Kind.Groupable() {
			if i != 0 {
				item.Caption = "" // only the first item's caption survives grouping
			}
			album = append(album, item)
			continue
		}
		standalone = append(standalone, item)
	}

	var plan DeliveryPlan
	if len(album) == 1 {
		plan.Units = append(plan.Units, DeliveryUnit{Items: album})
	} else if len(album) > 1 {
		plan.Units = append(plan.Units, DeliveryUnit{Grouped: true, Items: album})
	}
	for _, item := range standalone {
		plan.Units = append(plan.Units, DeliveryUnit{Items: []MediaItem{item}})
	}
	return plan
}

// DefaultPopupWordLimit caps how long a whisper may be and still fit in a
// transient popup instead of a direct message
const DefaultPopupWordLimit = 10

// PopupFits reports whether text is short enough for ephemeral delivery
func PopupFits(text string, wordLimit int) bool {
	if wordLimit <= 0 {
		wordLimit = DefaultPopupWordLimit
	}
	return len(strings.Fields(text)) <= wordLimit
}
