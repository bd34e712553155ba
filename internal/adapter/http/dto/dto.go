package dto

// CheckoutStartRequest is the storefront's request to begin a hosted checkout.
// Amount and currency are absent: they come from the server catalog.
type CheckoutStartRequest struct {
	UserID      string `json:"userId" binding:"required,max=128,safe_id"`
	ProductType string `json:"productType" binding:"required,max=64,safe_id"`
}

// CheckoutStartResponse carries the hosted checkout URL.
type CheckoutStartResponse struct {
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId"`
}

// OrderResponse is the dashboard view of an order. It never contains the credential.
type OrderResponse struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile,omitempty"`
	CustomerID    string `json:"customer_id"`
	ProductType   string `json:"product_type"`
	AmountPaid    int64  `json:"amount_paid"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	HasCredential bool   `json:"has_credential"`
	CreatedAt     string `json:"created_at"`
}

// OrderListResponse wraps a paginated order list.
type OrderListResponse struct {
	Items      []OrderResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// VerifyCredentialRequest is sent by downstream services holding a presented key.
type VerifyCredentialRequest struct {
	Credential string `json:"credential" binding:"required,max=256" sanitize:"-"`
}

// VerifyCredentialResponse answers whether a credential belongs to a completed order.
type VerifyCredentialResponse struct {
	Valid       bool   `json:"valid"`
	UserID      string `json:"userId,omitempty"`
	ProductType string `json:"productType,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// CredentialResponse returns a decrypted credential.
type CredentialResponse struct {
	SessionID  string `json:"session_id"`
	Credential string `json:"credential"`
}
