package orders

const (
	TopicOrderCreated       = "order.created"
	TopicStockLeaked        = "order.stock.leaked"
	TopicOrderStatusChanged = "order.status.changed"
)

// PartitionKey keeps every event of one order (or attempt) on one partition.
func PartitionKey(id string) []byte { return []byte(id) }
