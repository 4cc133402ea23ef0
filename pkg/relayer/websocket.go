package relayer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/storage"
)

// blockPollInterval paces the store poll that feeds the websocket stream.
const blockPollInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// blockNotification is pushed to subscribers once per finalized block.
type blockNotification struct {
	BlockNumber uint64 `json:"block_number"`
}

// wsHub fans finalized block numbers out to websocket subscribers. It
// polls the store's last block info so it stays strictly read-only.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  *zap.SugaredLogger
}

func newWSHub(logger *zap.SugaredLogger) *wsHub {
	return &wsHub{clients: make(map[*websocket.Conn]struct{}), logger: logger}
}

func (h *wsHub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws_upgrade_failed", "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// drain reads so pings and closes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *wsHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *wsHub) broadcast(n uint64) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(blockNotification{BlockNumber: n}); err != nil {
			h.drop(c)
		}
	}
}

// watchBlocks polls the last block info and broadcasts every new number in
// order.
func (h *wsHub) watchBlocks(store *storage.PostProcessStore) {
	var last uint64
	var seeded bool
	ticker := time.NewTicker(blockPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		info, err := store.ReadLastBlockInfo()
		if err != nil || info == nil {
			continue
		}
		if !seeded {
			last = info.BlockNumber
			seeded = true
			h.broadcast(last)
			continue
		}
		for n := last + 1; n <= info.BlockNumber; n++ {
			h.broadcast(n)
		}
		last = info.BlockNumber
	}
}
