package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"job_harvester/internal/domain"
)

// SourceStore keeps per-source scrape bookkeeping keyed by source URL.
type SourceStore struct {
	coll *mongo.Collection
}

func NewSourceStore(coll *mongo.Collection) *SourceStore {
	return &SourceStore{coll: coll}
}

func (s *SourceStore) RecordScrapes(ctx context.Context, scrapes []domain.SourceScrape) error {
	if len(scrapes) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(scrapes))
	for _, sc := range scrapes {
		set := bson.M{
			"last_scraped_at": sc.ScrapedAt,
			"posts_found":     sc.PostsFound,
			"jobs_extracted":  sc.JobsExtracted,
			"last_error":      sc.Error,
		}
		update := bson.M{
			"$inc": bson.M{"total_jobs_extracted": int64(sc.JobsExtracted)},
		}
		if sc.Title != "" {
			set["title"] = sc.Title
		} else {
			update["$setOnInsert"] = bson.M{"title": ""}
		}
		update["$set"] = set

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": sc.URL}).
			SetUpdate(update).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("record scrapes: %w", err)
	}
	return nil
}

func (s *SourceStore) ListSources(ctx context.Context) ([]domain.SourceState, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_scraped_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []sourceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	states := make([]domain.SourceState, 0, len(docs))
	for _, d := range docs {
		states = append(states, d.toDomain())
	}
	return states, nil
}
