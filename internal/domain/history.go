package domain

// HistoryPage is one page of a room's persisted messages, oldest first
// unless the caller asked for backward pagination.
type HistoryPage struct {
	Messages   []ChatMessage `json:"messages"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}
