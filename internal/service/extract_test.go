package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/mock/gomock"

	"job_harvester/internal/domain"
)

func sourcedPosts(n int) []domain.SourcedPost {
	posts := make([]domain.SourcedPost, n)
	for i := range posts {
		posts[i] = domain.SourcedPost{
			Post: domain.Post{
				Text:     fmt.Sprintf("post %d", i),
				URL:      postURL(1, i),
				Metadata: domain.PostMetadata{PostID: fmt.Sprint(i)},
			},
			SourceID: groupURL(1),
		}
	}
	return posts
}

func (s *PipelineTestSuite) TestExtractAll_IsolatesFailures() {
	posts := sourcedPosts(7)

	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), groupURL(1)).
		DoAndReturn(func(_ context.Context, post domain.Post, _ string) (*domain.ExtractedJob, error) {
			switch post.Text {
			case "post 1":
				return nil, errors.New("model unavailable")
			case "post 2", "post 5":
				return nil, nil
			case "post 4":
				panic("unexpected model payload")
			}
			return &domain.ExtractedJob{Title: "Job " + post.Text, SourceURL: post.URL}, nil
		}).Times(len(posts))

	out := s.pipeline.ExtractAll(context.Background(), posts, 3)

	s.Require().Len(out, 3)
	titles := make([]string, 0, len(out))
	for _, e := range out {
		titles = append(titles, e.Job.Title)
		s.Equal(groupURL(1), e.SourceID)
		s.Equal("Job post "+e.Metadata.PostID, e.Job.Title)
	}
	s.ElementsMatch([]string{"Job post 0", "Job post 3", "Job post 6"}, titles)
}

func (s *PipelineTestSuite) TestExtractAll_BoundsConcurrencyByBatch() {
	const batchSize = 4
	posts := sourcedPosts(10)

	var inFlight, peak atomic.Int32
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, post domain.Post, _ string) (*domain.ExtractedJob, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &domain.ExtractedJob{Title: "t", SourceURL: post.URL}, nil
		}).Times(len(posts))

	out := s.pipeline.ExtractAll(context.Background(), posts, batchSize)

	s.Len(out, len(posts))
	s.LessOrEqual(peak.Load(), int32(batchSize))
}

func (s *PipelineTestSuite) TestExtractAll_BatchCap() {
	cfg := s.cfg
	cfg.MaxExtractBatches = 2
	p := s.newPipeline(cfg, false)

	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.ExtractedJob{Title: "t"}, nil).Times(6)

	out := p.ExtractAll(context.Background(), sourcedPosts(10), 3)
	s.Len(out, 6)
}

func (s *PipelineTestSuite) TestExtractAll_NoBatchAfterCancellation() {
	ctx, cancel := context.WithCancel(context.Background())

	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.Post, string) (*domain.ExtractedJob, error) {
			cancel()
			return &domain.ExtractedJob{Title: "t"}, nil
		}).Times(2)

	out := s.pipeline.ExtractAll(ctx, sourcedPosts(6), 2)
	s.Len(out, 2)
}
