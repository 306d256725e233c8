package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"todochat/app/core/orchestrator/task"
	"todochat/app/pkg/logger"
	"todochat/app/pkg/types"
)

const (
	defaultResponseTimeout = 30 * time.Second
	defaultChunkSizeRunes  = 400
	maxChunkSizeRunes      = 4000
)

// HTTPChannel exposes the agent over a JSON API. Conversational input
// goes through POST /api/message; /api/todos offers direct REST access
// to the same per-user task store.
type HTTPChannel struct {
	id              string
	port            int
	server          *http.Server
	handler         func(types.Message)
	statusProvider  func(context.Context) map[string]interface{}
	shutdownTimeout time.Duration
	responseTimeout time.Duration

	taskStore *task.Store

	pendingMu   sync.Mutex
	pending     map[string]chan types.Message
	counter     uint64
	startedUnix atomic.Int64
}

func NewHTTPChannel(port int) *HTTPChannel {
	return &HTTPChannel{
		id:              "http",
		port:            port,
		pending:         map[string]chan types.Message{},
		shutdownTimeout: 5 * time.Second,
		responseTimeout: defaultResponseTimeout,
	}
}

func (c *HTTPChannel) ID() string {
	return c.id
}

func (c *HTTPChannel) SetStatusProvider(provider func(context.Context) map[string]interface{}) {
	c.statusProvider = provider
}

func (c *HTTPChannel) SetTaskStore(store *task.Store) {
	c.taskStore = store
}

func (c *HTTPChannel) SetShutdownTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	c.shutdownTimeout = timeout
}

func (c *HTTPChannel) SetResponseTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	c.responseTimeout = timeout
}

func (c *HTTPChannel) Start(ctx context.Context, handler func(types.Message)) error {
	c.handler = handler
	c.startedUnix.Store(time.Now().Unix())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", c.handleMessage)
	mux.HandleFunc("/api/status", c.handleStatus)
	mux.HandleFunc("/api/todos", c.handleTodos)
	mux.HandleFunc("/api/todos/", c.handleTodoItem)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error: %v", err)
		}
	}()

	logger.Info("HTTP listening on port %d", c.port)
	if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (c *HTTPChannel) Send(ctx context.Context, msg types.Message) error {
	if strings.TrimSpace(msg.RequestID) == "" {
		logger.Error("HTTP outgoing message without request id: %s", msg.Content)
		return nil
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[msg.RequestID]
	c.pendingMu.Unlock()
	if !ok {
		logger.Error("HTTP pending request not found: %s", msg.RequestID)
		return nil
	}

	select {
	case ch <- msg:
	default:
	}
	return nil
}

type statusResponse struct {
	ChannelID       string                 `json:"channel_id"`
	PendingRequests int                    `json:"pending_requests"`
	StartedAt       string                 `json:"started_at,omitempty"`
	UptimeSec       int64                  `json:"uptime_sec"`
	Runtime         map[string]interface{} `json:"runtime,omitempty"`
}

func (c *HTTPChannel) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{ChannelID: c.id}
	c.pendingMu.Lock()
	resp.PendingRequests = len(c.pending)
	c.pendingMu.Unlock()

	if started := c.startedUnix.Load(); started > 0 {
		startAt := time.Unix(started, 0).UTC()
		resp.StartedAt = startAt.Format(time.RFC3339)
		resp.UptimeSec = int64(time.Since(startAt).Seconds())
		if resp.UptimeSec < 0 {
			resp.UptimeSec = 0
		}
	}
	if c.statusProvider != nil {
		resp.Runtime = c.statusProvider(r.Context())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (c *HTTPChannel) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !gjson.ValidBytes(body) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	parsed := gjson.ParseBytes(body)
	content := strings.TrimSpace(parsed.Get("content").String())
	if content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if c.handler == nil {
		http.Error(w, "handler not ready", http.StatusServiceUnavailable)
		return
	}

	msg, respCh := c.prepareMessage(
		content,
		parsed.Get("user_id").String(),
		parsed.Get("conversation_id").String(),
	)
	defer c.removePendingRequest(msg.RequestID)

	c.handler(msg)

	streamRequested := parsed.Get("stream").Bool() || parseBoolQuery(r.URL.Query().Get("stream"))
	chunkSize := parseChunkSize(r.URL.Query().Get("chunk_size"))

	select {
	case response := <-respCh:
		if streamRequested {
			c.writeStreamResponse(w, response, chunkSize)
			return
		}
		c.writeMessageResponse(w, response)
	case <-time.After(c.responseTimeout):
		http.Error(w, "request timeout", http.StatusGatewayTimeout)
	}
}

func (c *HTTPChannel) writeMessageResponse(w http.ResponseWriter, response types.Message) {
	payload, err := encodeMessageResponse(response)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func encodeMessageResponse(response types.Message) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		payload, err = sjson.SetBytes(payload, path, value)
	}

	set("reply", response.Content)
	set("conversation_id", response.ConversationID)
	set("request_id", response.RequestID)
	if intent, ok := response.Meta["intent"].(string); ok && intent != "" {
		set("intent", intent)
	}
	if taskID, ok := response.Meta["task_id"].(string); ok && taskID != "" {
		set("task_id", taskID)
	}
	if session, ok := response.Meta["session"].(string); ok && session == "awaiting_slot" {
		set("awaiting_input", true)
		if slot, ok := response.Meta["missing_slot"].(string); ok && slot != "" {
			set("missing_slot", slot)
		}
	}
	return payload, err
}

func (c *HTTPChannel) writeStreamResponse(w http.ResponseWriter, response types.Message, chunkSize int) {
	chunks := splitByRunes(response.Content, chunkSize)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writeEvent := func(event []byte) {
		_, _ = w.Write(append(event, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}

	for i, chunk := range chunks {
		event := []byte(`{"type":"chunk"}`)
		event, _ = sjson.SetBytes(event, "index", i+1)
		event, _ = sjson.SetBytes(event, "total", len(chunks))
		event, _ = sjson.SetBytes(event, "chunk", chunk)
		writeEvent(event)
	}

	done := []byte(`{"type":"done"}`)
	done, _ = sjson.SetBytes(done, "total", len(chunks))
	done, _ = sjson.SetBytes(done, "conversation_id", response.ConversationID)
	if intent, ok := response.Meta["intent"].(string); ok && intent != "" {
		done, _ = sjson.SetBytes(done, "intent", intent)
	}
	writeEvent(done)
}

func (c *HTTPChannel) handleTodos(w http.ResponseWriter, r *http.Request) {
	if c.taskStore == nil {
		http.Error(w, "todo store unavailable", http.StatusServiceUnavailable)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c.listTodos(w, r, userID)
	case http.MethodPost:
		c.createTodo(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (c *HTTPChannel) listTodos(w http.ResponseWriter, r *http.Request, userID string) {
	query := r.URL.Query()
	filter := task.Filter{
		Status:    query.Get("status"),
		Category:  query.Get("category"),
		Priority:  query.Get("priority"),
		Search:    query.Get("search"),
		SortBy:    query.Get("sort_by"),
		SortOrder: query.Get("sort_order"),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	todos, err := c.taskStore.List(r.Context(), userID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"todos": todos, "count": len(todos)})
}

func (c *HTTPChannel) createTodo(w http.ResponseWriter, r *http.Request, userID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !gjson.ValidBytes(body) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	parsed := gjson.ParseBytes(body)
	description := strings.TrimSpace(parsed.Get("description").String())
	if description == "" {
		http.Error(w, "description is required", http.StatusBadRequest)
		return
	}

	todo, err := c.taskStore.Create(
		r.Context(),
		userID,
		description,
		strings.TrimSpace(parsed.Get("due_date").String()),
		strings.TrimSpace(parsed.Get("priority").String()),
		strings.TrimSpace(parsed.Get("category").String()),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (c *HTTPChannel) handleTodoItem(w http.ResponseWriter, r *http.Request) {
	if c.taskStore == nil {
		http.Error(w, "todo store unavailable", http.StatusServiceUnavailable)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	id, action, ok := parseTodoPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			todo, err := c.taskStore.Get(r.Context(), userID, id)
			if err != nil {
				writeStoreError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, todo)
		case http.MethodPatch:
			c.updateTodo(w, r, userID, id)
		case http.MethodDelete:
			if err := c.taskStore.Delete(r.Context(), userID, id); err != nil {
				writeStoreError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "complete":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		todo, err := c.taskStore.Complete(r.Context(), userID, id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, todo)
	default:
		http.NotFound(w, r)
	}
}

func (c *HTTPChannel) updateTodo(w http.ResponseWriter, r *http.Request, userID string, id int64) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !gjson.ValidBytes(body) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	updates := map[string]string{}
	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		updates[key.String()] = value.String()
		return true
	})
	if len(updates) == 0 {
		http.Error(w, "no updates provided", http.StatusBadRequest)
		return
	}

	todo, err := c.taskStore.Update(r.Context(), userID, id, updates)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func requestUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

func parseTodoPath(path string) (id int64, action string, ok bool) {
	if !strings.HasPrefix(path, "/api/todos/") {
		return 0, "", false
	}
	tail := strings.Trim(strings.TrimPrefix(path, "/api/todos/"), "/")
	if tail == "" {
		return 0, "", false
	}
	parts := strings.Split(tail, "/")
	if len(parts) > 2 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	if len(parts) == 2 {
		return id, parts[1], true
	}
	return id, "", true
}

func (c *HTTPChannel) prepareMessage(content, userID, conversationID string) (types.Message, chan types.Message) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "local_user"
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		conversationID = userID
	}

	requestID := c.newID("req")
	respCh := make(chan types.Message, 1)
	c.pendingMu.Lock()
	c.pending[requestID] = respCh
	c.pendingMu.Unlock()

	msg := types.Message{
		ID:             c.newID("http"),
		Content:        content,
		Role:           types.MessageRoleUser,
		ChannelID:      c.id,
		UserID:         userID,
		ConversationID: conversationID,
		RequestID:      requestID,
		Meta: map[string]interface{}{
			"user_id": userID,
		},
	}
	return msg, respCh
}

func (c *HTTPChannel) removePendingRequest(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func splitByRunes(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSizeRunes
	}
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+chunkSize-1)/chunkSize)
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func parseBoolQuery(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseChunkSize(raw string) int {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || size <= 0 {
		return defaultChunkSizeRunes
	}
	if size > maxChunkSizeRunes {
		return maxChunkSizeRunes
	}
	return size
}

func (c *HTTPChannel) newID(prefix string) string {
	seq := atomic.AddUint64(&c.counter, 1)
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatUint(seq, 10)
}
