package remote

// Wire contracts for the two remote dependencies. Shapes mirror the services'
// RPC responses; a payload-level "no" (valid/exists/available = false) is a
// terminal rejection, not a transport failure.

// OwnerCheck is the identity service's answer for one owner reference.
type OwnerCheck struct {
	Valid        bool      `json:"valid"`
	Owner        OwnerInfo `json:"owner_info"`
	ErrorMessage string    `json:"error_message"`
}

// OwnerInfo describes a validated owner.
type OwnerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"is_active"`
}

// ItemCheck is the catalog service's answer for one item reference.
type ItemCheck struct {
	Exists       bool     `json:"exists"`
	Item         ItemInfo `json:"item_info"`
	ErrorMessage string   `json:"error_message"`
}

// ItemInfo describes a catalog item. Price travels as a string to keep
// decimal precision across the wire.
type ItemInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	InventoryCount int    `json:"inventory_count"`
	Available      bool   `json:"is_available"`
}

// AvailabilityCheck is the catalog service's answer for a quantity check.
type AvailabilityCheck struct {
	Available         bool   `json:"available"`
	AvailableQuantity int    `json:"available_quantity"`
	ErrorMessage      string `json:"error_message"`
}
