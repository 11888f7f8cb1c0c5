package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"job_harvester/internal/domain"
)

type JobStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewJobStore(coll *mongo.Collection) *JobStore {
	return &JobStore{coll: coll, now: time.Now}
}

// EnsureIndexes creates the unique source_url index the upsert relies on,
// plus the read-side indexes.
func (s *JobStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "job_type", Value: 1}}},
		{Keys: bson.D{{Key: "scraped_at", Value: -1}}},
		{Keys: bson.D{{Key: "group_url", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create job indexes: %w", err)
	}
	return nil
}

// BulkUpsert issues one unordered bulk write. Write errors are reported per
// item from the BulkWriteException; counts from acknowledged batches are kept
// when the call fails.
func (s *JobStore) BulkUpsert(ctx context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error) {
	if len(records) == 0 {
		return &domain.BulkWriteResult{}, nil
	}

	now := s.now().UTC()
	models := make([]mongo.WriteModel, 0, len(records))
	for i := range records {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"source_url": records[i].SourceURL}).
			SetUpdate(bson.M{
				"$set":         toDoc(&records[i], now),
				"$setOnInsert": bson.M{"created_at": now},
			}).
			SetUpsert(true))
	}

	bw, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))

	res := &domain.BulkWriteResult{}
	if bw != nil {
		res.Inserted = int(bw.UpsertedCount)
		res.Updated = int(bw.MatchedCount)
		for idx, id := range bw.UpsertedIDs {
			i := int(idx)
			res.CreatedIndexes = append(res.CreatedIndexes, i)
			if oid, ok := id.(primitive.ObjectID); ok && i < len(records) {
				records[i].ID = oid.Hex()
			}
		}
		slices.Sort(res.CreatedIndexes)
	}

	if err == nil {
		return res, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			res.Failures = append(res.Failures, domain.WriteError{Index: we.Index, Message: we.Message})
		}
	}
	return res, fmt.Errorf("bulk upsert jobs: %w", err)
}

func (s *JobStore) ListJobs(ctx context.Context, q domain.JobQuery) (*domain.JobPage, error) {
	filter := buildFilter(q)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{"engagement": bson.M{"$add": bson.A{
			"$likes_count", "$comments_count", "$shares_count", "$top_reactions_count",
		}}}}},
		{{Key: "$sort", Value: sortFor(q.Filter)}},
		{{Key: "$skip", Value: int64(q.Offset())}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []jobDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	page := &domain.JobPage{Jobs: make([]domain.JobRecord, 0, len(docs)), TotalCount: int(total)}
	for _, d := range docs {
		page.Jobs = append(page.Jobs, d.toDomain())
	}
	return page, nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var doc jobDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	job := doc.toDomain()
	return &job, nil
}

func (s *JobStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Category string `bson:"_id"`
		Count    int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode category counts: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

func buildFilter(q domain.JobQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.JobType != "" {
		filter["job_type"] = q.JobType
	}
	if q.Location != "" {
		filter["location"] = contains(q.Location)
	}
	if q.Search != "" {
		re := contains(q.Search)
		filter["$or"] = bson.A{
			bson.M{"job_title": re},
			bson.M{"company": re},
			bson.M{"description": re},
			bson.M{"location": re},
		}
	}
	return filter
}

func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func sortFor(filter string) bson.D {
	switch filter {
	case domain.FilterOldest:
		return bson.D{{Key: "scraped_at", Value: 1}, {Key: "_id", Value: 1}}
	case domain.FilterPopular:
		return bson.D{{Key: "engagement", Value: -1}, {Key: "scraped_at", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "scraped_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}
