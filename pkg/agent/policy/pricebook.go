package policy

import "strings"

// Item is one catalog entry with its case price and minimum order.
type Item struct {
	Product   string
	UnitPrice float64
	MinCases  int
	Related   string
}

// DefaultReorderProduct is the fallback "usual order" for a returning
// customer whose history is not on file.
const DefaultReorderProduct = "Asiago Cheese Bagels"

// catalogEntry binds utterance keywords to an item. Multi-word keywords
// are listed before their substrings so the most specific match wins.
type catalogEntry struct {
	keywords []string
	item     Item
}

var catalog = []catalogEntry{
	{[]string{"cream cheese"}, Item{"Cream Cheese", 18, 2, "Asiago Cheese Bagels"}},
	{[]string{"orange juice", "juice"}, Item{"Orange Juice", 20, 3, "Bottled Water (16.9 fl oz)"}},
	{[]string{"half and half", "creamer"}, Item{"Half-and-Half Creamer", 20, 2, "House Blend Coffee"}},
	{[]string{"bagel"}, Item{"Asiago Cheese Bagels", 25, 2, "Cream Cheese"}},
	{[]string{"water"}, Item{"Bottled Water (16.9 fl oz)", 20, 3, "Orange Juice"}},
	{[]string{"coffee"}, Item{"House Blend Coffee", 28, 2, "Half-and-Half Creamer"}},
	{[]string{"milk"}, Item{"Whole Milk (1 gal)", 22, 2, "House Blend Coffee"}},
	{[]string{"pastries", "pastry", "croissant"}, Item{"Assorted Pastries", 25, 2, "House Blend Coffee"}},
	{[]string{"jam", "jelly"}, Item{"Jam Assortment (32 oz jars)", 18, 2, "Assorted Pastries"}},
	{[]string{"egg"}, Item{"Fresh Eggs", 22, 2, "Whole Milk (1 gal)"}},
}

// Lookup finds the first catalog item mentioned in the utterance.
func Lookup(utterance string) (Item, bool) {
	lower := strings.ToLower(utterance)
	for _, entry := range catalog {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.item, true
			}
		}
	}
	return Item{}, false
}

// ByProduct finds a catalog item by its display name.
func ByProduct(name string) (Item, bool) {
	for _, entry := range catalog {
		if strings.EqualFold(entry.item.Product, name) {
			return entry.item, true
		}
	}
	return Item{}, false
}
