package domain

import "testing"

func TestCanTransitionForwardPath(t *testing.T) {
	path := []JobStatus{JobStatusPending, JobStatusAnalyzing, JobStatusGenerating, JobStatusCompleted}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransitionRejectsRegression(t *testing.T) {
	cases := []struct{ from, to JobStatus }{
		{JobStatusAnalyzing, JobStatusPending},
		{JobStatusGenerating, JobStatusAnalyzing},
		{JobStatusCompleted, JobStatusGenerating},
		{JobStatusPending, JobStatusGenerating},
		{JobStatusPending, JobStatusCompleted},
		{JobStatusCompleted, JobStatusFailed},
		{JobStatusFailed, JobStatusPending},
		{JobStatusFailed, JobStatusFailed},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestCanTransitionFailedFromAnyNonTerminal(t *testing.T) {
	for _, from := range []JobStatus{JobStatusPending, JobStatusAnalyzing, JobStatusGenerating} {
		if !CanTransition(from, JobStatusFailed) {
			t.Fatalf("expected %s -> failed to be allowed", from)
		}
	}
}

func TestImageRefCloneDoesNotAlias(t *testing.T) {
	ref := ImageRef{Data: []byte{1, 2, 3}, MIME: "image/png"}
	clone := ref.Clone()
	clone.Data[0] = 9
	if ref.Data[0] != 1 {
		t.Fatal("clone shares backing array with original")
	}
}
