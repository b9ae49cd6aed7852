package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mschirtzinger/inkpot/internal/migrate"
	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

// ArticleUpdateData contains article change information
type ArticleUpdateData struct {
	Slug   string `json:"slug"`
	Action string `json:"action"` // created, updated, removed
}

// SyncCompleteData contains batch sync information
type SyncCompleteData struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// MigrationData contains the outcome of a migration attempt
type MigrationData struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Version    int64  `json:"version,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
}

// StatsData contains activity counters since the handler started
type StatsData struct {
	Created       int   `json:"created"`
	Updated       int   `json:"updated"`
	Removed       int   `json:"removed"`
	Syncs         int   `json:"syncs"`
	SyncErrors    int   `json:"sync_errors"`
	Migrations    int   `json:"migrations"`
	SchemaVersion int64 `json:"schema_version,omitempty"`
}

// Handler turns sync engine and migration runner events into dashboard
// messages. It implements both sync.Notifier and migrate.Notifier.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

var (
	_ inksync.Notifier = (*Handler)(nil)
	_ migrate.Notifier = (*Handler)(nil)
)

// NewHandler creates a new event handler connected to a dashboard server.
// New WebSocket clients receive the handler's counters as their welcome
// message.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
	}
	server.stats = h.Stats
	return h
}

// ArticleChanged handles a single article write.
func (h *Handler) ArticleChanged(slug string, change inksync.Change) {
	h.mu.Lock()
	switch change {
	case inksync.ChangeCreated:
		h.stats.Created++
	case inksync.ChangeUpdated:
		h.stats.Updated++
	case inksync.ChangeRemoved:
		h.stats.Removed++
	}
	h.mu.Unlock()

	h.send(MessageTypeArticleUpdate, ArticleUpdateData{Slug: slug, Action: string(change)})
	h.broadcastStats()
}

// SyncCompleted handles the end of a batch sync.
func (h *Handler) SyncCompleted(res *inksync.Result) {
	h.logger.Printf("Sync completed: %d created, %d updated, %d unchanged, %d error(s)",
		res.Created, res.Updated, res.Unchanged, len(res.Errors))

	h.mu.Lock()
	h.stats.Syncs++
	h.stats.SyncErrors += len(res.Errors)
	h.mu.Unlock()

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	h.send(MessageTypeSyncComplete, SyncCompleteData{
		Created:   res.Created,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Errors:    errs,
		Cancelled: res.Cancelled,
	})
	h.broadcastStats()
}

// MigrationApplied handles a finished migration attempt.
func (h *Handler) MigrationApplied(res migrate.Result) {
	h.mu.Lock()
	h.stats.Migrations++
	if res.Success && res.Version > 0 {
		h.stats.SchemaVersion = res.Version
	}
	h.mu.Unlock()

	h.send(MessageTypeMigration, MigrationData{
		Success:    res.Success,
		Message:    res.Message,
		Version:    res.Version,
		ConfigHash: res.ConfigHash,
	})
	h.broadcastStats()
}

// Stats returns a snapshot of the counters.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) broadcastStats() {
	h.send(MessageTypeStats, h.Stats())
}

func (h *Handler) send(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
