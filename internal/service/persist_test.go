package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/mock/gomock"

	"job_harvester/internal/domain"
)

func (s *PipelineTestSuite) TestPersist_AllCreated() {
	items := []domain.Extraction{
		{
			Job:      domain.ExtractedJob{Title: "construction software developer", SourceURL: postURL(1, 1)},
			Metadata: domain.PostMetadata{AuthorName: "Ada", LikesCount: 4},
			SourceID: groupURL(1),
		},
		{
			Job:      domain.ExtractedJob{Title: "Registered Nurse", SourceURL: postURL(1, 2)},
			SourceID: groupURL(1),
		},
	}

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error) {
			s.Require().Len(records, 2)
			s.Equal("blue-collar", records[0].Category)
			s.Equal("healthcare", records[1].Category)
			s.Equal(groupURL(1), records[0].SourceID)
			s.Equal("Ada", records[0].AuthorName)
			s.Equal(4, records[0].LikesCount)
			s.Equal(fixedNow, records[0].ScrapedAt)
			return &domain.BulkWriteResult{Inserted: 2, CreatedIndexes: []int{0, 1}}, nil
		})

	report := s.pipeline.Persist(context.Background(), "run-1", items)

	s.Equal(domain.BatchReport{Total: 2, Created: 2}, report)
	s.Equal(2, report.Saved())
}

func (s *PipelineTestSuite) TestPersist_PartialFailureIsAttributed() {
	items := extractions(10)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(10)).Return(
		&domain.BulkWriteResult{
			Inserted:       5,
			Updated:        2,
			CreatedIndexes: []int{0, 2, 3, 5, 6},
			Failures: []domain.WriteError{
				{Index: 1, Message: "document too large"},
				{Index: 4, Message: "duplicate key"},
				{Index: 8, Message: "validation failed"},
			},
		},
		errors.New("bulk write exception: 3 write errors"),
	)

	report := s.pipeline.Persist(context.Background(), "run-1", items)

	s.Equal(10, report.Total)
	s.Equal(7, report.Created+report.Updated)
	s.Equal(3, report.Failed)
	s.Require().Len(report.Failures, 3)
	s.Equal(domain.WriteFailure{SourceURL: postURL(1, 1), Message: "document too large"}, report.Failures[0])
	s.Equal(postURL(1, 4), report.Failures[1].SourceURL)
	s.Equal(postURL(1, 8), report.Failures[2].SourceURL)
}

func (s *PipelineTestSuite) TestPersist_OutrightFailureKeepsPartialProgress() {
	items := extractions(10)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(
		&domain.BulkWriteResult{Inserted: 3, Updated: 1, CreatedIndexes: []int{0, 1, 2}},
		errors.New("connection reset"),
	)

	report := s.pipeline.Persist(context.Background(), "run-1", items)

	s.Equal(3, report.Created)
	s.Equal(1, report.Updated)
	s.Equal(6, report.Failed)
	s.Equal(report.Total, report.Created+report.Updated+report.Failed)
	s.Require().Len(report.Failures, 1)
	s.Empty(report.Failures[0].SourceURL)
	s.Contains(report.Failures[0].Message, "6 writes not acknowledged")
	s.Contains(report.Failures[0].Message, "connection reset")
}

func (s *PipelineTestSuite) TestPersist_OutrightFailureWithoutResult() {
	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(nil, errors.New("no reachable servers"))

	report := s.pipeline.Persist(context.Background(), "run-1", extractions(4))

	s.Equal(domain.BatchReport{
		Total:    4,
		Failed:   4,
		Failures: []domain.WriteFailure{{Message: "4 writes not acknowledged by store: no reachable servers"}},
	}, report)
}

func (s *PipelineTestSuite) TestPersist_MissingSourceURLIsRejected() {
	items := extractions(3)
	items[1].Job.SourceURL = ""

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(2)).
		Return(&domain.BulkWriteResult{Inserted: 1, Updated: 1, CreatedIndexes: []int{0}}, nil)

	report := s.pipeline.Persist(context.Background(), "run-1", items)

	s.Equal(3, report.Total)
	s.Equal(1, report.Created)
	s.Equal(1, report.Updated)
	s.Equal(1, report.Failed)
	s.Equal([]domain.WriteFailure{{Message: missingSourceURL}}, report.Failures)
}

func (s *PipelineTestSuite) TestPersist_FailureDetailsAreBounded() {
	cfg := s.cfg
	cfg.MaxFailureDetails = 2
	p := s.newPipeline(cfg, false)

	failures := make([]domain.WriteError, 5)
	for i := range failures {
		failures[i] = domain.WriteError{Index: i, Message: "rejected"}
	}
	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).
		Return(&domain.BulkWriteResult{Failures: failures}, errors.New("bulk write exception"))

	report := p.Persist(context.Background(), "run-1", extractions(5))

	s.Equal(5, report.Failed)
	s.Len(report.Failures, 2)
}

func (s *PipelineTestSuite) TestPersist_Empty() {
	report := s.pipeline.Persist(context.Background(), "run-1", nil)
	s.Equal(domain.BatchReport{}, report)
}

// memoryJobStore upserts by source URL like the real stores.
type memoryJobStore struct {
	mu      sync.Mutex
	records map[string]domain.JobRecord
}

func (m *memoryJobStore) BulkUpsert(_ context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := &domain.BulkWriteResult{}
	for i, rec := range records {
		if _, ok := m.records[rec.SourceURL]; ok {
			res.Updated++
		} else {
			res.Inserted++
			res.CreatedIndexes = append(res.CreatedIndexes, i)
		}
		m.records[rec.SourceURL] = rec
	}
	return res, nil
}

func (s *PipelineTestSuite) TestPersist_Idempotent() {
	store := &memoryJobStore{records: map[string]domain.JobRecord{}}
	p := NewPipeline(s.source, s.extractor, store, nil, nil, s.logger, s.cfg)

	item := extraction(postURL(1, 1), "Barista", groupURL(1))

	first := p.Persist(context.Background(), "run-1", []domain.Extraction{item})
	s.Equal(1, first.Created)
	s.Equal(0, first.Updated)

	item.Job.Salary = "KES 30k"
	second := p.Persist(context.Background(), "run-2", []domain.Extraction{item})
	s.Equal(0, second.Created)
	s.Equal(1, second.Updated)

	s.Len(store.records, 1)
	s.Equal("KES 30k", store.records[postURL(1, 1)].Salary)
}

func (s *PipelineTestSuite) TestPersist_PublishesConfirmedWrites() {
	p := s.newPipeline(s.cfg, true)
	items := extractions(3)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(
		&domain.BulkWriteResult{
			Inserted:       1,
			Updated:        1,
			CreatedIndexes: []int{2},
			Failures:       []domain.WriteError{{Index: 0, Message: "rejected"}},
		}, errors.New("bulk write exception"))

	var events []domain.JobEvent
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev domain.JobEvent) error {
			events = append(events, ev)
			return nil
		}).Times(2)

	p.Persist(context.Background(), "run-9", items)

	s.Require().Len(events, 2)
	s.Equal(postURL(1, 1), events[0].Job.SourceURL)
	s.False(events[0].Created)
	s.Equal(postURL(1, 2), events[1].Job.SourceURL)
	s.True(events[1].Created)
	s.Equal("run-9", events[1].RunID)
}

func (s *PipelineTestSuite) TestPersist_PublishesOnlyCreatesWhenUnattributed() {
	p := s.newPipeline(s.cfg, true)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(
		&domain.BulkWriteResult{Inserted: 1, Updated: 1, CreatedIndexes: []int{0}},
		errors.New("interrupted"))

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Cond(func(ev domain.JobEvent) bool {
		return ev.Created && ev.Job.SourceURL == postURL(1, 0)
	})).Return(nil).Times(1)

	report := p.Persist(context.Background(), "run-1", extractions(3))
	s.Equal(1, report.Failed)
}

func (s *PipelineTestSuite) TestPersist_PublishFailureDoesNotAffectReport() {
	p := s.newPipeline(s.cfg, true)

	s.jobs.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).
		Return(&domain.BulkWriteResult{Inserted: 2, CreatedIndexes: []int{0, 1}}, nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(fmt.Errorf("channel closed")).Times(2)

	report := p.Persist(context.Background(), "run-1", extractions(2))
	s.Equal(domain.BatchReport{Total: 2, Created: 2}, report)
}
