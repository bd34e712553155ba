package domain

// Provider event types the router acts on.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Checkout session payment_status values.
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// Event is a verified provider notification. Session is set for checkout.session.* events.
type Event struct {
	ID      string
	Type    string
	Created int64
	Session *CheckoutSession
}

// CheckoutSession is the subset of the provider's session object the pipeline reads.
type CheckoutSession struct {
	ID                string
	CustomerID        string
	ClientReferenceID string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	CustomerEmail     string
	Metadata          map[string]string
}

// ProductType returns the product_type metadata value.
func (s *CheckoutSession) ProductType() ProductType {
	return ProductType(s.Metadata[MetaProductType])
}

// IsPaid reports whether the session's funds are settled.
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// RouteStatus is the outcome of handling one delivery.
type RouteStatus string

const (
	RouteFulfilled RouteStatus = "fulfilled"
	RouteDuplicate RouteStatus = "duplicate"
	RouteIgnored   RouteStatus = "ignored"
)

// RouteOutcome is returned for every successfully handled delivery.
type RouteOutcome struct {
	Status RouteStatus
	Reason string
	Order  *Order
}
