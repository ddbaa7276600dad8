package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// slowProvider blocks until its context is done.
type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestTimeout_ExpiredDeadlineIsUnavailable(t *testing.T) {
	p := WithTimeout(slowProvider{}, 5*time.Millisecond)

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T (%v)", err, err)
	}
	if !IsUnavailable(err) {
		t.Fatal("expected IsUnavailable to report true")
	}
}

func TestTimeout_NonPositiveReturnsInner(t *testing.T) {
	mock := NewMockProvider()
	if p := WithTimeout(mock, 0); p != Provider(mock) {
		t.Fatalf("expected inner provider, got %T", p)
	}
}

func TestTimeout_PassesThroughSuccess(t *testing.T) {
	mock := NewMockProvider(MockText("Since yesterday."))
	p := WithTimeout(mock, time.Second)

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "Since yesterday." {
		t.Fatalf("unexpected reply: %q", resp.Text())
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", p.ModelID())
	}
}
