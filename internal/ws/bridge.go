// Пакет ws — мост между Pub/Sub каналом событий и WebSocket-клиентами.
//
// Мост держит ровно одну подписку на канал webhook:events и раздаёт
// каждое сообщение всем подключённым клиентам. Доставка at-most-once:
// клиент с переполненной очередью отключается, история не хранится.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/bigkaa/hookstore/internal/domain/model"
	"github.com/bigkaa/hookstore/internal/events"
	"github.com/bigkaa/hookstore/internal/storage/kv"
)

const writeTimeout = 10 * time.Second

// Subscriber — минимальный контракт хранилища для моста.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// client — один подключённый WebSocket-клиент.
type client struct {
	send chan []byte
}

// Bridge — фан-аут событий на WebSocket-подключения.
type Bridge struct {
	store      Subscriber
	sendBuffer int
	logger     *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	cancel context.CancelFunc
}

// New создаёт мост событий.
func New(store Subscriber, sendBuffer int, logger *slog.Logger) *Bridge {
	return &Bridge{
		store:      store,
		sendBuffer: sendBuffer,
		logger:     logger.With(slog.String("component", "ws_bridge")),
		clients:    make(map[*client]struct{}),
	}
}

// Start открывает единственную подписку на канал событий и запускает
// горутину раздачи. Вызывается один раз при старте приложения.
func (b *Bridge) Start(ctx context.Context) error {
	bCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	msgs, unsubscribe, err := b.store.Subscribe(bCtx, events.Channel)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-bCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.broadcast(msg)
			}
		}
	}()

	b.logger.Info("WS-мост запущен", slog.String("channel", events.Channel))
	return nil
}

// Stop останавливает раздачу и отключает всех клиентов.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}

	b.mu.Lock()
	for c := range b.clients {
		close(c.send)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	b.logger.Info("WS-мост остановлен")
}

// ClientCount возвращает количество подключённых клиентов.
func (b *Bridge) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// broadcast раздаёт сообщение всем клиентам. Очереди клиентов
// буферизованы; клиент, не успевающий вычитывать, отключается.
func (b *Bridge) broadcast(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			// Медленный клиент: очередь полна, отключаем.
			delete(b.clients, c)
			close(c.send)
			b.logger.Warn("WS-клиент отключён: очередь переполнена")
		}
	}
}

// register добавляет клиента в раздачу.
func (b *Bridge) register(c *client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
}

// unregister убирает клиента из раздачи.
func (b *Bridge) unregister(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// ServeHTTP выполняет upgrade соединения и обслуживает клиента до
// разрыва. Первый кадр — подтверждение webhook.ws_ready, далее
// пересылаются события канала как есть.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.logger.Warn("Ошибка WS upgrade", slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx := r.Context()

	// Регистрация до отправки подтверждения: события, опубликованные
	// после первого кадра, гарантированно попадают в очередь клиента.
	c := &client{send: make(chan []byte, b.sendBuffer)}
	b.register(c)
	defer b.unregister(c)

	ready, err := json.Marshal(model.Event{
		Type:      model.EventWSReady,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	if err := b.write(ctx, conn, ready); err != nil {
		return
	}

	b.logger.Debug("WS-клиент подключён",
		slog.String("remote_addr", r.RemoteAddr),
	)

	// Читатель: вычитывает входящие кадры, чтобы обрабатывались
	// ping/close, и сигналит о разрыве соединения.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-readDone:
			return
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "slow consumer")
				return
			}
			if err := b.write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

// write отправляет текстовый кадр с таймаутом.
func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	wCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wCtx, websocket.MessageText, msg)
}

var _ Subscriber = (kv.Store)(nil)
