package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"*/30 * * * *", false},
		{"0 * * * *", false},
		{"@hourly", false},
		{"61 * * * *", true},
		{"not cron", true},
		{"", true},
	}
	for _, tt := range tests {
		if err := Validate(tt.spec); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(time.UTC)
	if err := s.Add("bad", "every minute", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestRunsInLocationAndStops(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	s := New(loc)

	ran := make(chan struct{}, 4)
	var jobCtx context.Context
	err := s.Add("tick", "@every 1s", func(ctx context.Context) error {
		jobCtx = ctx
		ran <- struct{}{}
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}

	s.Start()
	if next := s.Next(); len(next) != 1 || next[0].Location() != loc {
		t.Errorf("Next = %v, want one time in %v", next, loc)
	}

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if jobCtx.Err() == nil {
		t.Error("job context not cancelled on Stop")
	}
}
