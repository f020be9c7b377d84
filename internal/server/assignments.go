package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/repo"
)

func registerAssignments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "auto-assign",
		Method:        http.MethodPost,
		Path:          "/assignments/auto-assign",
		Summary:       "Assign a work item to the best eligible staff member",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AutoAssignRequest `json:"body"`
	}) (*struct {
		Body AutoAssignResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "body required", nil)
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.AutoAssign(ctx, engine.AssignRequest{
			WorkItemID:     input.Body.WorkItemID,
			WorkItemType:   input.Body.WorkItemType,
			RequiredSkills: input.Body.RequiredSkills,
			Priority:       input.Body.Priority,
			UnitID:         input.Body.UnitID,
			ActorID:        principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AutoAssignResponse `json:"body"`
		}{Body: autoAssignResponse(res)}, nil
	})

	type assignmentPath struct {
		AssignmentID string `path:"assignment_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-assignment",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}",
		Summary:     "Fetch one assignment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *assignmentPath) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		a, err := e.Repo.GetAssignment(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/assignments",
		Summary:     "List assignments",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:"assigned,in_progress,completed,cancelled" required:"false"`
		SLAStatus  string `query:"sla_status" enum:"ok,warning,breached,escalated" required:"false"`
		AssigneeID string `query:"assignee_id" required:"false"`
		Limit      int    `query:"limit" required:"false"`
	}) (*struct {
		Body []domain.Assignment `json:"body"`
	}, error) {
		items, err := e.Repo.ListAssignments(ctx, repo.AssignmentFilters{
			Status:     input.Status,
			SLAStatus:  input.SLAStatus,
			AssigneeID: input.AssigneeID,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Assignment{}
		}
		return &struct {
			Body []domain.Assignment `json:"body"`
		}{Body: items}, nil
	})

	transitions := []struct {
		op      string
		summary string
		call    func(ctx context.Context, id, actor string) (domain.Assignment, error)
	}{
		{"start-assignment", "Mark an assignment in progress", e.StartAssignment},
		{"complete-assignment", "Complete an assignment", e.CompleteAssignment},
		{"cancel-assignment", "Cancel an assignment", e.CancelAssignment},
	}
	paths := map[string]string{
		"start-assignment":    "/assignments/{assignment_id}/start",
		"complete-assignment": "/assignments/{assignment_id}/complete",
		"cancel-assignment":   "/assignments/{assignment_id}/cancel",
	}
	for _, t := range transitions {
		call := t.call
		huma.Register(api, huma.Operation{
			OperationID: t.op,
			Method:      http.MethodPost,
			Path:        paths[t.op],
			Summary:     t.summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *assignmentPath) (*struct {
			Body domain.Assignment `json:"body"`
		}, error) {
			principal, authErr := principalFromRequest(ctx)
			if authErr != nil {
				return nil, authErr
			}
			a, err := call(ctx, input.AssignmentID, principal.UserID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Assignment `json:"body"`
			}{Body: a}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-escalations",
		Method:      http.MethodGet,
		Path:        "/escalations",
		Summary:     "List escalation events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" required:"false"`
	}) (*struct {
		Body []domain.EscalationEvent `json:"body"`
	}, error) {
		items, err := e.Repo.ListEscalations(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.EscalationEvent{}
		}
		return &struct {
			Body []domain.EscalationEvent `json:"body"`
		}{Body: items}, nil
	})
}
