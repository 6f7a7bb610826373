package repository

import (
	"testing"

	"leadflow_backend/internal/workflow/domain"

	"github.com/google/uuid"
)

func TestBuildJobListWhere(t *testing.T) {
	status := domain.StatusFailed
	leadID := uuid.New()

	where, args, next := buildJobListWhere(ListParams{Status: &status, LeadID: &leadID})

	if where != "1=1 AND status = $1 AND lead_id = $2" {
		t.Fatalf("unexpected where clause %q", where)
	}
	if len(args) != 2 || args[0] != "failed" || args[1] != leadID {
		t.Fatalf("unexpected args %v", args)
	}
	if next != 3 {
		t.Fatalf("expected next placeholder 3, got %d", next)
	}
}

func TestBuildJobListWhereEmpty(t *testing.T) {
	where, args, next := buildJobListWhere(ListParams{})
	if where != "1=1" || len(args) != 0 || next != 1 {
		t.Fatalf("unexpected %q %v %d", where, args, next)
	}
}
