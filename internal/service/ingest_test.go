package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/mock/gomock"

	"job_harvester/internal/domain"
)

func groupPosts(group, n int) []domain.Post {
	posts := make([]domain.Post, n)
	for i := range posts {
		posts[i] = domain.Post{
			Text:     fmt.Sprintf("group %d post %d", group, i),
			URL:      postURL(group, i),
			Metadata: domain.PostMetadata{GroupTitle: fmt.Sprintf("Group %d", group)},
		}
	}
	return posts
}

func createAll(_ context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error) {
	res := &domain.BulkWriteResult{Inserted: len(records)}
	for i := range records {
		res.CreatedIndexes = append(res.CreatedIndexes, i)
	}
	return res, nil
}

func (s *PipelineTestSuite) TestRunBatch_EndToEnd() {
	a, b := groupURL(1), groupURL(2)
	jobPosts := map[string]bool{postURL(1, 0): true, postURL(1, 2): true, postURL(1, 4): true}

	s.source.EXPECT().Fetch(gomock.Any(), a, domain.FetchOptions{MaxItems: 10}).Return(groupPosts(1, 5), nil)
	s.source.EXPECT().Fetch(gomock.Any(), b, domain.FetchOptions{MaxItems: 10}).
		Return(nil, &domain.FetchError{SourceID: b, Err: errors.New("unexpected status: 502")})

	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, post domain.Post, _ string) (*domain.ExtractedJob, error) {
			if !jobPosts[post.URL] {
				return nil, nil
			}
			return &domain.ExtractedJob{Title: "Driver", SourceURL: post.URL}, nil
		}).Times(5)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(3)).DoAndReturn(createAll)

	var scrapes []domain.SourceScrape
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in []domain.SourceScrape) error {
			scrapes = in
			return nil
		})

	result, err := s.pipeline.RunBatch(context.Background(), []string{a, b}, 0, 0)

	s.Require().NoError(err)
	s.NotEmpty(result.RunID)
	s.Equal(2, result.TotalSources)
	s.Equal(5, result.TotalPostsScraped)
	s.Equal(3, result.TotalJobsExtracted)
	s.Equal(3, result.TotalJobsSaved)
	s.Equal(0, result.TotalErrors)
	s.Len(result.JobsBySource[a], 3)

	s.Equal(domain.SourceResult{PostsFound: 5, JobsExtracted: 3}, result.PerSource[a])
	s.Require().Contains(result.PerSource, b)
	s.Contains(result.PerSource[b].Error, "502")
	s.Zero(result.PerSource[b].PostsFound)

	s.Require().Len(scrapes, 2)
	s.Equal(domain.SourceScrape{
		URL: a, Title: "Group 1", PostsFound: 5, JobsExtracted: 3, ScrapedAt: fixedNow,
	}, scrapes[0])
	s.Equal(b, scrapes[1].URL)
	s.NotEmpty(scrapes[1].Error)
}

func (s *PipelineTestSuite) TestRunBatch_NoPostsAnywhere() {
	a, b := groupURL(1), groupURL(2)

	s.source.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).Return([]domain.Post{}, nil)
	s.source.EXPECT().Fetch(gomock.Any(), b, gomock.Any()).Return(nil, errors.New("private group"))
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Len(2)).Return(nil)

	result, err := s.pipeline.RunBatch(context.Background(), []string{a, b}, 10, 2)

	s.ErrorIs(err, domain.ErrNoPosts)
	s.Require().NotNil(result)
	s.Equal(noPostsMessage, result.PerSource[a].Error)
	s.Contains(result.PerSource[b].Error, "private group")
	s.Zero(result.TotalPostsScraped)
}

func (s *PipelineTestSuite) TestRunBatch_ValidationHappensBeforeFetching() {
	tests := []struct {
		name        string
		ids         []string
		limit       int
		concurrency int
		invalid     []string
	}{
		{name: "empty", ids: nil},
		{name: "invalid urls", ids: []string{groupURL(1), "https://example.com/groups/1", "nope"},
			invalid: []string{"https://example.com/groups/1", "nope"}},
		{name: "too many", ids: make([]string, 21)},
		{name: "limit too high", ids: []string{groupURL(1)}, limit: 101},
		{name: "negative concurrency", ids: []string{groupURL(1)}, concurrency: -1},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.pipeline.RunBatch(context.Background(), tt.ids, tt.limit, tt.concurrency)

			s.Require().ErrorIs(err, domain.ErrInvalidInput)
			var vErr *domain.ValidationError
			s.Require().True(errors.As(err, &vErr))
			if tt.invalid != nil {
				s.Equal(tt.invalid, vErr.InvalidSources)
			}
		})
	}
}

func (s *PipelineTestSuite) TestRunBatch_ConcurrencyIsCapped() {
	cfg := s.cfg
	cfg.MaxConcurrency = 1
	p := s.newPipeline(cfg, false)

	ids := []string{groupURL(1), groupURL(2), groupURL(3)}
	inFlight := 0
	for _, id := range ids {
		s.source.EXPECT().Fetch(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(context.Context, string, domain.FetchOptions) ([]domain.Post, error) {
				inFlight++
				defer func() { inFlight-- }()
				s.Equal(1, inFlight)
				return nil, nil
			})
	}
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).Return(nil)

	_, err := p.RunBatch(context.Background(), ids, 10, 8)
	s.ErrorIs(err, domain.ErrNoPosts)
}

func (s *PipelineTestSuite) TestRunBatch_SourceStoreFailureIsNotFatal() {
	a := groupURL(1)
	s.source.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).Return(groupPosts(1, 1), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), a).Return(&domain.ExtractedJob{Title: "Chef", SourceURL: postURL(1, 0)}, nil)
	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(createAll)
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	result, err := s.pipeline.RunBatch(context.Background(), []string{a}, 10, 1)

	s.Require().NoError(err)
	s.Equal(1, result.TotalJobsSaved)
}

func (s *PipelineTestSuite) TestRunBatch_PersistenceFailuresAreCounted() {
	a := groupURL(1)
	s.source.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).Return(groupPosts(1, 2), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, post domain.Post, _ string) (*domain.ExtractedJob, error) {
			return &domain.ExtractedJob{Title: "Chef", SourceURL: post.URL}, nil
		}).Times(2)
	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.pipeline.RunBatch(context.Background(), []string{a}, 10, 1)

	s.Require().NoError(err)
	s.Equal(0, result.TotalJobsSaved)
	s.Equal(2, result.TotalErrors)
	s.Equal(2, result.Report.Failed)
}

func (s *PipelineTestSuite) TestRunSingleSource() {
	a := groupURL(7)
	s.source.EXPECT().Fetch(gomock.Any(), a, domain.FetchOptions{MaxItems: 25}).Return(groupPosts(7, 3), nil)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, post domain.Post, _ string) (*domain.ExtractedJob, error) {
			if post.URL == postURL(7, 1) {
				return nil, nil
			}
			return &domain.ExtractedJob{Title: "Cashier", SourceURL: post.URL}, nil
		}).Times(3)
	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(2)).
		Return(&domain.BulkWriteResult{Inserted: 1, Updated: 1, CreatedIndexes: []int{0}}, nil)
	s.sources.EXPECT().RecordScrapes(gomock.Any(), []domain.SourceScrape{{
		URL: a, Title: "Group 7", PostsFound: 3, JobsExtracted: 2, ScrapedAt: fixedNow,
	}}).Return(nil)

	result, err := s.pipeline.RunSingleSource(context.Background(), a, 25)

	s.Require().NoError(err)
	s.Equal(a, result.SourceID)
	s.Equal(3, result.ItemsFound)
	s.Equal(2, result.JobsExtracted)
	s.Equal(2, result.JobsSaved)
	s.Equal(0, result.SaveErrors)
	s.Len(result.Jobs, 2)
}

func (s *PipelineTestSuite) TestRunSingleSource_NoPosts() {
	a := groupURL(7)
	s.source.EXPECT().Fetch(gomock.Any(), a, domain.FetchOptions{MaxItems: 10}).Return(nil, nil)
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.pipeline.RunSingleSource(context.Background(), a, 0)

	s.ErrorIs(err, domain.ErrNoPosts)
	s.Nil(result)
}

func (s *PipelineTestSuite) TestRunSingleSource_FetchError() {
	a := groupURL(7)
	s.source.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).Return(nil, errors.New("actor crashed"))
	s.sources.EXPECT().RecordScrapes(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.pipeline.RunSingleSource(context.Background(), a, 10)

	s.Nil(result)
	var fetchErr *domain.FetchError
	s.Require().True(errors.As(err, &fetchErr))
	s.Equal(a, fetchErr.SourceID)
}

func (s *PipelineTestSuite) TestRunSingleSource_InvalidURL() {
	_, err := s.pipeline.RunSingleSource(context.Background(), "https://twitter.com/groups/1", 10)

	var vErr *domain.ValidationError
	s.Require().True(errors.As(err, &vErr))
	s.Equal([]string{"https://twitter.com/groups/1"}, vErr.InvalidSources)
}
