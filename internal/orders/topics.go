package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicStockAdjusted      = "inventory.stock.adjusted"
	TopicRestock            = "inventory.restock"
)

// Partition key = entity id, supaya semua event 1 order/product maintain urutan.
func PartitionKey(id string) []byte { return []byte(id) }
