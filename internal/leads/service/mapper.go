package service

import (
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/transport"
)

func toLeadResponse(lead domain.Lead) transport.LeadResponse {
	fields := lead.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	refs := make([]transport.ExternalRefResponse, len(lead.ExternalRefs))
	for i, ref := range lead.ExternalRefs {
		refs[i] = transport.ExternalRefResponse{Source: ref.Source, ExternalID: ref.ExternalID}
	}
	return transport.LeadResponse{
		ID:                    lead.ID,
		Email:                 lead.Email,
		FirstName:             lead.FirstName,
		LastName:              lead.LastName,
		FullName:              lead.FullName,
		Phone:                 lead.Phone,
		Company:               lead.Company,
		Status:                string(lead.Status),
		AssignedAgentID:       lead.AssignedAgentID,
		Source:                lead.Source,
		Fields:                fields,
		ExternalRefs:          refs,
		CreatedAt:             lead.CreatedAt,
		UpdatedAt:             lead.UpdatedAt,
		LastSourceSyncAt:      lead.LastSourceSyncAt,
		WorkflowInitializedAt: lead.WorkflowInitializedAt,
	}
}

func toLeadListResponse(items []domain.Lead, total int, page int, pageSize int) transport.LeadListResponse {
	responses := make([]transport.LeadResponse, len(items))
	for i, item := range items {
		responses[i] = toLeadResponse(item)
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return transport.LeadListResponse{
		Items:      responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func toIngestResponse(result domain.UpsertResult, initialized bool) transport.IngestResponse {
	return transport.IngestResponse{
		Lead:                toLeadResponse(result.Lead),
		Outcome:             string(result.Outcome),
		MatchedBy:           result.MatchedBy,
		WorkflowInitialized: initialized,
	}
}
