package domain

// ProductType identifies what a checkout session pays for.
type ProductType string

const (
	ProductTypeCredentialed ProductType = "digital_credentialed"
	ProductTypePlain        ProductType = "digital_plain"
)

// Product is a catalog entry. Amount is in minor units.
type Product struct {
	Type         ProductType
	Name         string
	Description  string
	Amount       int64
	Currency     string
	Credentialed bool
}

// Catalog is the server-side price list. Prices are never taken from the client.
type Catalog map[ProductType]Product

// Lookup returns the product for t.
func (c Catalog) Lookup(t ProductType) (Product, bool) {
	p, ok := c[t]
	return p, ok
}

// Owns reports whether events for t are fulfilled by this service.
func (c Catalog) Owns(t ProductType) bool {
	_, ok := c[t]
	return ok
}

// RequiresCredential reports whether orders for t get an access credential.
func (c Catalog) RequiresCredential(t ProductType) bool {
	return c[t].Credentialed
}
