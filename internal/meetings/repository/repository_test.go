package repository

import (
	"testing"
	"time"

	"leadflow_backend/internal/meetings/domain"

	"github.com/google/uuid"
)

func TestBuildMeetingListWhere(t *testing.T) {
	leadID := uuid.New()
	status := domain.StatusScheduled
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	where, args, next := buildMeetingListWhere(ListParams{LeadID: &leadID, Status: &status, From: &from})

	if where != "1=1 AND lead_id = $1 AND status = $2 AND start_time >= $3" {
		t.Fatalf("unexpected where %q", where)
	}
	if len(args) != 3 || next != 4 {
		t.Fatalf("unexpected args %v next %d", args, next)
	}
}
