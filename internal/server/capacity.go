package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
)

func registerCapacity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "capacity-check",
		Method:      http.MethodGet,
		Path:        "/capacity/check",
		Summary:     "Report utilization for a staff member or a unit",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		StaffID string `query:"staff_id" required:"false"`
		UnitID  string `query:"unit_id" required:"false"`
	}) (*struct {
		Body domain.CapacityReport `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		report, err := e.CapacityCheckFor(ctx, principal.Scope(), engine.CapacityQuery{
			StaffID: input.StaffID,
			UnitID:  input.UnitID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CapacityReport `json:"body"`
		}{Body: report}, nil
	})
}
