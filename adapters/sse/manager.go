package sse

import (
	"context"
	"log/slog"
	"sync"
)

type managerOptions[T any] struct {
	logger     *slog.Logger
	publisher  Publisher[T]
	subscriber Subscriber[T]
}

type ManagerOption[T any] func(*managerOptions[T])

// WithManagerLogger 設置日誌記錄器
func WithManagerLogger[T any](logger *slog.Logger) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.logger = logger
	}
}

// WithManagerPublisher 設置跨節點的發布端，未設置時事件只在本節點廣播。
func WithManagerPublisher[T any](p Publisher[T]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.publisher = p
	}
}

// WithManagerSubscriber 設置跨節點的接收端，與 Publisher 成對使用。
func WithManagerSubscriber[T any](s Subscriber[T]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.subscriber = s
	}
}

// connectionManager 管理多個 SSE 頻道的訂閱與發布。
// 設置 Publisher/Subscriber 時事件繞經訊息流，讓多個服務實例協同廣播；
// 未設置時退化為單節點的 in-process 廣播。
type connectionManager[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex   // 保護 active 和 channels 的讀寫
	wg     sync.WaitGroup // 用於等待所有 goroutine 完成
	active bool           // 標記 manager 是否正在運作中

	options  managerOptions[T]
	channels map[string]*Channel[T] // 儲存所有活躍的頻道
}

// NewConnectionManager 建立一個新的連線管理器。
func NewConnectionManager[T any](opts ...ManagerOption[T]) IConnectionManager[T] {
	// 默認選項
	options := managerOptions[T]{
		logger: slog.Default(),
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &connectionManager[T]{
		ctx:      ctx,
		cancel:   cancel,
		logger:   options.logger.With(slog.String("caller", "ConnectionManager")),
		options:  options,
		channels: make(map[string]*Channel[T]),
		active:   true,
	}
}

// Start 啟動連線管理器，開始處理事件的接收與廣播。
// 應在呼叫其他方法前先呼叫此方法。
func (cm *connectionManager[T]) Start() {
	if cm.options.publisher != nil {
		cm.options.publisher.Start()
	}
	if cm.options.subscriber == nil {
		return
	}
	cm.options.subscriber.Start()

	// 啟動訊息流接收的 goroutine
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for msg := range cm.options.subscriber.Subscribe() {
			cm.broadcastLocal(msg.Channel, msg.Message)
		}
	}()
}

// Done 停止連線管理器的運作。
func (cm *connectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.mu.Unlock()

	cm.cancel()
	if cm.options.publisher != nil {
		cm.options.publisher.Close()
	}
	if cm.options.subscriber != nil {
		cm.options.subscriber.Close()
	}
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道，返回接收事件的唯讀通道。
func (cm *connectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T]()
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Publish 發布事件到指定的頻道。
// 有訊息流時送往訊息流，由各節點的接收端廣播；否則直接本地廣播。
func (cm *connectionManager[T]) Publish(channelName string, data T) error {
	cm.mu.RLock()
	if !cm.active {
		cm.mu.RUnlock()
		return context.Canceled
	}
	cm.mu.RUnlock()

	if cm.options.publisher != nil {
		return cm.options.publisher.Publish(PublishRequest[T]{
			Channel: channelName,
			Message: data,
		})
	}

	cm.broadcastLocal(channelName, data)
	return nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}

func (cm *connectionManager[T]) broadcastLocal(channelName string, data T) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if channel, ok := cm.channels[channelName]; ok {
		channel.Broadcast(data)
	}
}
