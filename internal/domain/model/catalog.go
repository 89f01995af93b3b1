package model

// CatalogItem is the authoritative price for a course or service.
// The catalog itself is managed elsewhere; this service only reads it.
type CatalogItem struct {
	ItemType ItemType `json:"itemType"`
	ItemID   string   `json:"itemId"`
	Title    string   `json:"title"`
	Price    int64    `json:"price"` // minor units per billing period
	Currency string   `json:"currency"`
	Active   bool     `json:"active"`
}
