// Package mongodb implements the clinical repositories on top of MongoDB.
// Documents carry their own bson shape and are mapped to domain entities at
// the package boundary; identifiers are stored as canonical UUID strings.
package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

// collection pairs a mongo collection with the latency histogram.
// A nil collector disables observation.
type collection struct {
	coll    *mongo.Collection
	metrics *metrics.Collector
}

func newCollection(db *mongo.Database, name string, m *metrics.Collector) collection {
	return collection{coll: db.Collection(name), metrics: m}
}

func (c collection) observe(op string) func() {
	if c.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.metrics.StoreQueryDuration.
			WithLabelValues("mongodb", c.coll.Name(), op).
			Observe(time.Since(start).Seconds())
	}
}

// findPage runs filter with skip/limit paging and returns the decoded page
// plus the total number of matching documents.
func findPage[D any](ctx context.Context, c collection, filter bson.M, sort bson.D, page, pageSize int) ([]D, int64, error) {
	defer c.observe("find_page")()

	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func idString(id uuid.UUID) string {
	return id.String()
}

func optIDString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// toUUID maps a stored identifier back; malformed values become uuid.Nil.
func toUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func optUUID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := toUUID(*s)
	return &id
}

func idStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func uuids(ss []string) []uuid.UUID {
	if len(ss) == 0 {
		return nil
	}
	out := make([]uuid.UUID, len(ss))
	for i, s := range ss {
		out[i] = toUUID(s)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// containsFold matches a case-insensitive substring.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// timeRange builds a {$gte,$lte} clause, or nil when both bounds are absent.
func timeRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	r := bson.M{}
	if from != nil {
		r["$gte"] = from.UTC()
	}
	if to != nil {
		r["$lte"] = to.UTC()
	}
	return r
}
