package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/mock/gomock"

	"job_harvester/internal/domain"
)

func (s *PipelineTestSuite) TestFetchAll_CoversEveryIDWithinConcurrency() {
	const concurrency = 3
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = groupURL(i)
	}

	var inFlight, peak atomic.Int32
	s.source.EXPECT().Fetch(gomock.Any(), gomock.Any(), domain.FetchOptions{MaxItems: 5}).
		DoAndReturn(func(_ context.Context, id string, _ domain.FetchOptions) ([]domain.Post, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)

			if id == groupURL(4) {
				return nil, errors.New("actor timed out")
			}
			return []domain.Post{{URL: id + "/posts/1"}}, nil
		}).Times(len(ids))

	outcomes := s.pipeline.FetchAll(context.Background(), ids, concurrency, domain.FetchOptions{MaxItems: 5})

	s.Len(outcomes, len(ids))
	s.LessOrEqual(peak.Load(), int32(concurrency))
	s.GreaterOrEqual(peak.Load(), int32(1))

	for _, id := range ids {
		outcome, ok := outcomes[id]
		s.Require().True(ok, id)
		if id == groupURL(4) {
			s.Nil(outcome.Posts)
			var fetchErr *domain.FetchError
			s.Require().True(errors.As(outcome.Err, &fetchErr))
			s.Equal(id, fetchErr.SourceID)
			continue
		}
		s.NoError(outcome.Err)
		s.Len(outcome.Posts, 1)
	}
}

func (s *PipelineTestSuite) TestFetchAll_GroupsRunSequentially() {
	ids := []string{groupURL(1), groupURL(2), groupURL(3), groupURL(4), groupURL(5)}

	var (
		mu    sync.Mutex
		order []string
	)
	s.source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, _ domain.FetchOptions) ([]domain.Post, error) {
			mu.Lock()
			order = append(order, "start:"+id)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, "end:"+id)
			mu.Unlock()
			return nil, nil
		}).Times(len(ids))

	outcomes := s.pipeline.FetchAll(context.Background(), ids, 2, domain.FetchOptions{MaxItems: 10})
	s.Len(outcomes, len(ids))

	pos := func(ev string) int {
		for i, o := range order {
			if o == ev {
				return i
			}
		}
		return -1
	}
	// every call of group N ends before any call of group N+1 starts
	s.Less(pos("end:"+ids[0]), pos("start:"+ids[2]))
	s.Less(pos("end:"+ids[1]), pos("start:"+ids[2]))
	s.Less(pos("end:"+ids[1]), pos("start:"+ids[3]))
	s.Less(pos("end:"+ids[3]), pos("start:"+ids[4]))

	// zero posts is a success, not an error
	s.NoError(outcomes[ids[0]].Err)
	s.NotNil(outcomes[ids[0]].Posts)
}

func (s *PipelineTestSuite) TestFetchAll_WrapsPlainErrors() {
	s.source.EXPECT().Fetch(gomock.Any(), groupURL(1), gomock.Any()).Return(nil, errors.New("boom"))

	outcomes := s.pipeline.FetchAll(context.Background(), []string{groupURL(1)}, 1, domain.FetchOptions{MaxItems: 10})

	var fetchErr *domain.FetchError
	s.Require().True(errors.As(outcomes[groupURL(1)].Err, &fetchErr))
	s.Equal(groupURL(1), fetchErr.SourceID)
	s.EqualError(fetchErr.Err, "boom")
}

func (s *PipelineTestSuite) TestFetchAll_DeduplicatesIDs() {
	s.source.EXPECT().Fetch(gomock.Any(), groupURL(1), gomock.Any()).Return([]domain.Post{{URL: "a"}}, nil).Times(1)
	s.source.EXPECT().Fetch(gomock.Any(), groupURL(2), gomock.Any()).Return([]domain.Post{{URL: "b"}}, nil).Times(1)

	outcomes := s.pipeline.FetchAll(context.Background(),
		[]string{groupURL(1), groupURL(2), groupURL(1)}, 3, domain.FetchOptions{MaxItems: 10})

	s.Len(outcomes, 2)
}

func (s *PipelineTestSuite) TestFetchAll_CancellationAbandonsGroupAndSkipsRest() {
	ids := []string{groupURL(1), groupURL(2), groupURL(3), groupURL(4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	var started sync.WaitGroup
	started.Add(2)

	for _, id := range ids[:2] {
		s.source.EXPECT().Fetch(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(context.Context, string, domain.FetchOptions) ([]domain.Post, error) {
				started.Done()
				<-release
				return []domain.Post{{URL: "late"}}, nil
			}).Times(1)
	}

	go func() {
		started.Wait()
		cancel()
	}()

	done := make(chan map[string]domain.SourceOutcome, 1)
	go func() {
		done <- s.pipeline.FetchAll(ctx, ids, 2, domain.FetchOptions{MaxItems: 10})
	}()

	select {
	case outcomes := <-done:
		s.Len(outcomes, len(ids))
		for _, id := range ids {
			s.ErrorIs(outcomes[id].Err, context.Canceled, id)
			s.Nil(outcomes[id].Posts, id)
		}
	case <-time.After(2 * time.Second):
		s.Fail("FetchAll did not return after cancellation")
	}
}
