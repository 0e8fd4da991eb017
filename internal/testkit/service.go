package testkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"botscan/models"

	"github.com/stretchr/testify/mock"
)

// Operation names used by the service doubles
const (
	OpLookup   = "lookup"
	OpReport   = "report"
	OpFeedback = "feedback"
)

// Call is one remote call parked until the test resolves it
type Call struct {
	Op       string
	Username string
	Profile  *models.Profile
	Record   *models.FeedbackRecord

	result chan callResult
}

type callResult struct {
	value interface{}
	err   error
}

// Resolve completes the call with value, which must match the operation:
// *models.Profile, *models.Report or *models.FeedbackAck.
func (c *Call) Resolve(value interface{}) {
	c.result <- callResult{value: value}
}

// Fail completes the call with err
func (c *Call) Fail(err error) {
	c.result <- callResult{err: err}
}

// ControlledService parks every call until the test resolves it, which
// lets tests interleave completions of different generations exactly.
type ControlledService struct {
	calls chan *Call

	mu     sync.Mutex
	counts map[string]int
}

func NewControlledService() *ControlledService {
	return &ControlledService{
		calls:  make(chan *Call, 32),
		counts: make(map[string]int),
	}
}

func (s *ControlledService) park(ctx context.Context, c *Call) (interface{}, error) {
	c.result = make(chan callResult, 1)
	s.mu.Lock()
	s.counts[c.Op]++
	s.mu.Unlock()

	s.calls <- c
	select {
	case r := <-c.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ControlledService) LookupProfile(ctx context.Context, username string) (*models.Profile, error) {
	v, err := s.park(ctx, &Call{Op: OpLookup, Username: username})
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile), nil
}

func (s *ControlledService) GenerateReport(ctx context.Context, profile *models.Profile) (*models.Report, error) {
	v, err := s.park(ctx, &Call{Op: OpReport, Username: profile.ScreenName, Profile: profile})
	if err != nil {
		return nil, err
	}
	return v.(*models.Report), nil
}

func (s *ControlledService) SubmitFeedback(ctx context.Context, record *models.FeedbackRecord) (*models.FeedbackAck, error) {
	v, err := s.park(ctx, &Call{Op: OpFeedback, Username: record.Username, Record: record})
	if err != nil {
		return nil, err
	}
	return v.(*models.FeedbackAck), nil
}

// Next waits for the next parked call and checks its operation
func (s *ControlledService) Next(t testing.TB, op string) *Call {
	t.Helper()
	select {
	case c := <-s.calls:
		if c.Op != op {
			t.Fatalf("expected %s call, got %s for %q", op, c.Op, c.Username)
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s call", op)
		return nil
	}
}

// AssertIdle fails if a call is waiting to be taken
func (s *ControlledService) AssertIdle(t testing.TB) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected %s call for %q", c.Op, c.Username)
	default:
	}
}

// Count reports how many calls of op were made
func (s *ControlledService) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

// MockService is a testify mock of the remote analysis service
type MockService struct {
	mock.Mock
}

func (m *MockService) LookupProfile(ctx context.Context, username string) (*models.Profile, error) {
	args := m.Called(ctx, username)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *MockService) GenerateReport(ctx context.Context, profile *models.Profile) (*models.Report, error) {
	args := m.Called(ctx, profile)
	r, _ := args.Get(0).(*models.Report)
	return r, args.Error(1)
}

func (m *MockService) SubmitFeedback(ctx context.Context, record *models.FeedbackRecord) (*models.FeedbackAck, error) {
	args := m.Called(ctx, record)
	a, _ := args.Get(0).(*models.FeedbackAck)
	return a, args.Error(1)
}
