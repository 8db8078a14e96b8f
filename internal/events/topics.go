package events

const (
	TopicOrders  = "storefront.orders"
	TopicReviews = "storefront.reviews"
)

// Partition key = order_id for order events and product_id for review
// events, so every event of one aggregate keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
