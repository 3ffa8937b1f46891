// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAction = "action"
	CategoryBatch  = "batch"
)

// Action event types
const (
	EventActionSucceeded = "action_succeeded"
	EventActionFailed    = "action_failed"    // upstream said no, or transport failed
	EventActionRejected  = "action_rejected"  // blocked by validation, nothing sent
	EventActionThrottled = "action_throttled" // blocked by the per-session rate limit
)

// Batch event types
const (
	EventBatchCompleted = "batch_completed"
	EventBatchCancelled = "batch_cancelled"
)

// Event represents an audit event for one dispatched action or batch run.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	// Event classification
	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// What
	RequestID string `bson:"request_id" json:"request_id"`
	Screen    string `bson:"screen" json:"screen"`
	Verb      string `bson:"verb" json:"verb"`
	Target    string `bson:"target,omitempty" json:"target,omitempty"` // row key

	// Who
	SessionID string `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Actor     string `bson:"actor,omitempty" json:"actor,omitempty"`

	// Context
	IP        string `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success" json:"success"`
	Message       string `bson:"message,omitempty" json:"message,omitempty"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Screen    string
	Verb      string
	SessionID string
	RequestID string
	Category  string
	EventType string
	Success   *bool
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("action_audit")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Query by time range (most recent first)
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		// Query by screen and verb
		{
			Keys: bson.D{
				{Key: "screen", Value: 1},
				{Key: "verb", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by session
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Batch items share the batch request id
		{
			Keys: bson.D{{Key: "request_id", Value: 1}},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}

	if filter.Screen != "" {
		query["screen"] = filter.Screen
	}
	if filter.Verb != "" {
		query["verb"] = filter.Verb
	}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.RequestID != "" {
		query["request_id"] = filter.RequestID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.Success != nil {
		query["success"] = *filter.Success
	}

	// Time range
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		Limit: limit,
	})
}

// GetByRequest retrieves every event written under one request id, which
// for a batch run is the summary plus one event per item.
func (s *Store) GetByRequest(ctx context.Context, requestID string) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		RequestID: requestID,
		Limit:     1000,
	})
}
