package events

const (
	TopicOrderCreated     = "order.created"
	TopicOrderConfirmed   = "order.confirmed"
	TopicOrderCancelled   = "order.cancelled"
	TopicStockReserved    = "inventory.reserved"
	TopicStockRejected    = "inventory.rejected"
	TopicStockReleased    = "inventory.released"
	TopicPaymentProcessed = "payment.processed"
	TopicPaymentFailed    = "payment.failed"
	TopicPaymentRefundReq = "payment.refund.requested"
	TopicPaymentRefunded  = "payment.refunded"
	TopicProductCreated   = "catalog.product.created"
	TopicProductUpdated   = "catalog.product.updated"
	TopicProductDeleted   = "catalog.product.deleted"
)

var topicByEvent = map[string]string{
	EventOrderCreated:              TopicOrderCreated,
	EventOrderConfirmed:            TopicOrderConfirmed,
	EventOrderCancelled:            TopicOrderCancelled,
	EventInventoryReserved:         TopicStockReserved,
	EventInventoryReservationFault: TopicStockRejected,
	EventInventoryReleased:         TopicStockReleased,
	EventPaymentProcessed:          TopicPaymentProcessed,
	EventPaymentFailed:             TopicPaymentFailed,
	EventPaymentRefundRequested:    TopicPaymentRefundReq,
	EventPaymentRefunded:           TopicPaymentRefunded,
	EventProductCreated:            TopicProductCreated,
	EventProductUpdated:            TopicProductUpdated,
	EventProductDeleted:            TopicProductDeleted,
}

// TopicFor maps an event type onto its topic. Unknown types panic:
// publishing an unmapped event is a programming error.
func TopicFor(eventType string) string {
	t, ok := topicByEvent[eventType]
	if !ok {
		panic("no topic for event type " + eventType)
	}
	return t
}

// PartitionKey keeps all events of one order on one partition so they
// stay ordered relative to each other. No ordering across orders.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// DLQTopic is where a message goes after the retry ladder is exhausted.
func DLQTopic(topic string) string { return topic + ".dlq" }
