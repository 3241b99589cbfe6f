package sse

// PublishRequest 表示一個發布請求，包含頻道名稱和事件內容。
type PublishRequest[T any] struct {
	Channel string `json:"channel" msgpack:"channel"`
	Message T      `json:"message" msgpack:"message"`
}

// Publisher 把發布請求送往跨節點的訊息流。
type Publisher[T any] interface {
	Start()
	Publish(data PublishRequest[T]) error
	Close()
}

// Subscriber 從跨節點的訊息流接收發布請求。
type Subscriber[T any] interface {
	Start()
	Subscribe() <-chan PublishRequest[T]
	Close()
}

// IConnectionManager 定義了 SSE 連線管理員的介面
type IConnectionManager[T any] interface {
	// Start 啟動 ConnectionManager，開始處理事件的接收與廣播。
	// 應在呼叫其他方法前先呼叫此方法。
	Start()
	// Done 停止 ConnectionManager，釋放所有資源。
	Done()
	// Subscribe 註冊並訂閱指定頻道，返回接收事件的唯讀通道。
	Subscribe(channelName string) (<-chan T, error)
	// Publish 將事件推送到指定頻道。
	Publish(channelName string, data T) error
	// Unsubscribe 取消訂閱指定頻道。
	Unsubscribe(channelName string, ch <-chan T)
}
