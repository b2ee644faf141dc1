package catalog

import "fmt"

// storeNames maps RAWG store ids to display names.
var storeNames = map[int]string{
	1:  "Steam",
	2:  "Xbox Store",
	3:  "PlayStation Store",
	4:  "App Store",
	5:  "GOG",
	6:  "Nintendo eShop",
	7:  "Xbox 360 Store",
	8:  "Google Play",
	9:  "itch.io",
	11: "Epic Games",
}

// StoreName returns the display name for a RAWG store id. Unknown ids get a
// synthesized "Store #<id>" label.
func StoreName(id int) string {
	if name, ok := storeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Store #%d", id)
}
