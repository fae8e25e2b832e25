package bulkimport

import "testing"

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		failed    int
		want      string
	}{
		{"all succeeded", 3, 0, "success"},
		{"mixed", 2, 1, "partial"},
		{"all failed", 0, 3, "error"},
		{"empty batch", 0, 0, "success"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateStatus(tt.succeeded, tt.failed)
			if got != tt.want {
				t.Errorf("AggregateStatus(%d, %d) = %q, want %q", tt.succeeded, tt.failed, got, tt.want)
			}
		})
	}
}

func TestProcessBatch_EmptyFileProducesErrorResult(t *testing.T) {
	p := &Processor{}
	result := p.processOne(nil, File{Filename: "empty.mp4", Data: nil})
	if result.Status != "error" {
		t.Errorf("expected error status for empty file, got %q", result.Status)
	}
	if result.Detail == "" {
		t.Error("expected a detail message for the empty-file error")
	}
}
