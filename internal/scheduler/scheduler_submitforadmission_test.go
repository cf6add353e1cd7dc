package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/robots"
)

func TestSubmitUrlForAdmission_AllowedByRobots_SubmitsToFrontier(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	htmlFetcher := newFetcherMockForTest(t)
	robot := newRobotsMockForTest(t)
	allowAnyURL(robot)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot,
		newExtractorMockForTest(t), newSanitizerMockForTest(t), newBrowserMockForTest(t), newIndexerMockForTest(t))

	target := parseURL(t, "https://example.com/docs/intro")
	err := s.SubmitUrlForAdmission(target, "Seed", 0)

	require.Nil(t, err)
	assert.Equal(t, 1, s.FrontierVisitedCount())

	token, ok := s.DequeueFromFrontier()
	require.True(t, ok)
	assert.Equal(t, target.String(), token.URL().String())
	assert.Equal(t, 0, token.Depth())
}

func TestSubmitUrlForAdmission_DisallowedByRobots_DoesNotSubmit(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	htmlFetcher := newFetcherMockForTest(t)
	robot := newRobotsMockForTest(t)
	robot.On("Decide", mock.AnythingOfType("url.URL")).Return(robots.Decision{Allowed: false}, nil)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot,
		newExtractorMockForTest(t), newSanitizerMockForTest(t), newBrowserMockForTest(t), newIndexerMockForTest(t))

	target := parseURL(t, "https://example.com/private")
	err := s.SubmitUrlForAdmission(target, "Seed", 0)

	require.Nil(t, err)
	assert.Equal(t, 0, s.FrontierVisitedCount())
}

func TestSubmitUrlForAdmission_RobotsInfrastructureError_ReturnsError(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	htmlFetcher := newFetcherMockForTest(t)
	robot := newRobotsMockForTest(t)
	robotsErr := &robots.RobotsError{Message: "fetch failed", Retryable: true, Cause: robots.ErrCauseHttpFetchFailure}
	robot.On("Decide", mock.AnythingOfType("url.URL")).Return(robots.Decision{}, robotsErr)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot,
		newExtractorMockForTest(t), newSanitizerMockForTest(t), newBrowserMockForTest(t), newIndexerMockForTest(t))

	target := parseURL(t, "https://example.com/docs")
	err := s.SubmitUrlForAdmission(target, "Seed", 0)

	require.NotNil(t, err)
	assert.Equal(t, 0, s.FrontierVisitedCount())
}

func TestSubmitUrlForAdmission_TooManyRequests_TriggersBackoff(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	rateLimiter.On("Backoff", "example.com").Return()
	htmlFetcher := newFetcherMockForTest(t)
	robot := newRobotsMockForTest(t)
	robotsErr := &robots.RobotsError{Message: "429", Retryable: true, Cause: robots.ErrCauseHttpTooManyRequests}
	robot.On("Decide", mock.AnythingOfType("url.URL")).Return(robots.Decision{}, robotsErr)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot,
		newExtractorMockForTest(t), newSanitizerMockForTest(t), newBrowserMockForTest(t), newIndexerMockForTest(t))

	target := parseURL(t, "https://example.com/docs")
	s.SetCurrentHost("example.com")
	_ = s.SubmitUrlForAdmission(target, "Crawl", 1)

	rateLimiter.AssertCalled(t, "Backoff", "example.com")
	assert.Equal(t, 1, sink.errorCount)
}

func TestSubmitUrlForAdmission_CrawlDelay_SetsHostDelay(t *testing.T) {
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	rateLimiter := newRateLimiterMockForTest(t)
	rateLimiter.On("SetCrawlDelay", mock.Anything, 2*time.Second).Return()
	htmlFetcher := newFetcherMockForTest(t)
	robot := newRobotsMockForTest(t)
	robot.On("Decide", mock.AnythingOfType("url.URL")).Return(robots.Decision{Allowed: true, CrawlDelay: 2 * time.Second}, nil)

	s := createSchedulerForTest(t, context.Background(), finalizer, sink,
		rateLimiter, htmlFetcher, robot,
		newExtractorMockForTest(t), newSanitizerMockForTest(t), newBrowserMockForTest(t), newIndexerMockForTest(t))

	target := parseURL(t, "https://example.com/docs")
	s.SetCurrentHost("example.com")
	err := s.SubmitUrlForAdmission(target, "Seed", 0)

	require.Nil(t, err)
	rateLimiter.AssertCalled(t, "SetCrawlDelay", "example.com", 2*time.Second)
}
