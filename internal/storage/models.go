package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Order status values. An order row is written exactly once; this core never
// transitions status after creation.
const (
	OrderPending   = "pending"
	OrderProcessed = "processed"
)

// Order is a confirmed purchase row. OrderID is allocated by SQLite
// (INTEGER PRIMARY KEY AUTOINCREMENT) and is strictly increasing.
type Order struct {
	OrderID   int64     `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Interaction is one completed routing decision: the inbound query and the
// response the agent returned for it. Append-only.
type Interaction struct {
	InteractionID int64     `json:"interaction_id"`
	Query         string    `json:"query"`
	Response      string    `json:"response"`
	CreatedAt     time.Time `json:"created_at"`
}

// Document is raw ingestable content (FAQ page, menu text) waiting to be
// embedded into the semantic index.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Section   string    `json:"section"` // "product" or "faq"
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	VectorID  string    `json:"vector_id,omitempty"`
}

// Job is a queued background task (document embedding).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
