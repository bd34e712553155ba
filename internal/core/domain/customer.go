package domain

// Metadata keys written onto the provider customer and checkout session.
const (
	MetaUserID      = "user_id"
	MetaUsername    = "username"
	MetaEmail       = "email"
	MetaMobile      = "mobile"
	MetaProductType = "product_type"
)

// User is the storefront account a checkout is started for.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile,omitempty"`
}

// CustomerMetadata returns the identity metadata attached to the provider customer.
func (u *User) CustomerMetadata() map[string]string {
	return map[string]string{
		MetaUserID:   u.ID,
		MetaUsername: u.Username,
		MetaEmail:    u.Email,
		MetaMobile:   u.Mobile,
	}
}

// CustomerRecord is the provider-side customer read back while materializing an order.
// Its metadata is the only trusted source of the buyer's identity.
type CustomerRecord struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// UserID returns the user_id metadata value, or "" when absent.
func (c *CustomerRecord) UserID() string {
	return c.Metadata[MetaUserID]
}

// Identity returns the user described by the customer metadata.
func (c *CustomerRecord) Identity() User {
	return User{
		ID:       c.Metadata[MetaUserID],
		Username: c.Metadata[MetaUsername],
		Email:    c.Metadata[MetaEmail],
		Mobile:   c.Metadata[MetaMobile],
	}
}
