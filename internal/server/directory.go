package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
)

// Directory sync endpoints. The staff/unit/skill records are owned by an
// external directory; these writes mirror it into the engine's store and
// are admin-only.
func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "upsert-unit",
		Method:      http.MethodPut,
		Path:        "/units/{unit_id}",
		Summary:     "Create or update an organizational unit",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UnitID string            `path:"unit_id"`
		Body   UnitUpsertRequest `json:"body"`
	}) (*struct {
		Body domain.OrganizationalUnit `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := principal.Scope().EnsureAdmin("directory"); err != nil {
			return nil, handleError(err)
		}
		u := domain.OrganizationalUnit{
			ID:           input.UnitID,
			Name:         input.Body.Name,
			UnitWIPLimit: input.Body.UnitWIPLimit,
		}
		if err := e.UpsertUnit(ctx, u, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetUnit(ctx, input.UnitID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OrganizationalUnit `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-skill",
		Method:      http.MethodPut,
		Path:        "/skills/{skill_id}",
		Summary:     "Create or update a skill",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		SkillID string             `path:"skill_id"`
		Body    SkillUpsertRequest `json:"body"`
	}) (*struct {
		Body domain.Skill `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := principal.Scope().EnsureAdmin("directory"); err != nil {
			return nil, handleError(err)
		}
		s := domain.Skill{ID: input.SkillID, Category: input.Body.Category}
		if err := e.UpsertSkill(ctx, s, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Skill `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-staff",
		Method:      http.MethodPut,
		Path:        "/staff/{staff_id}",
		Summary:     "Create or update a staff profile",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StaffID string             `path:"staff_id"`
		Body    StaffUpsertRequest `json:"body"`
	}) (*struct {
		Body domain.StaffProfile `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := principal.Scope().EnsureAdmin("directory"); err != nil {
			return nil, handleError(err)
		}
		p := domain.StaffProfile{
			ID:                 input.StaffID,
			UserID:             input.Body.UserID,
			UnitID:             input.Body.UnitID,
			Role:               input.Body.Role,
			Skills:             input.Body.Skills,
			IndividualWIPLimit: input.Body.IndividualWIPLimit,
			AvailabilityStatus: input.Body.AvailabilityStatus,
		}
		if existing, err := e.Repo.GetStaff(ctx, input.StaffID); err == nil {
			p.CurrentAssignmentCount = existing.CurrentAssignmentCount
			p.CreatedAt = existing.CreatedAt
		}
		if err := e.UpsertStaff(ctx, p, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetStaff(ctx, input.StaffID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StaffProfile `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-staff",
		Method:      http.MethodGet,
		Path:        "/staff/{staff_id}",
		Summary:     "Fetch a staff profile",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StaffID string `path:"staff_id"`
	}) (*struct {
		Body domain.StaffProfile `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetStaff(ctx, input.StaffID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := principal.Scope().EnsureCanQueryStaff(p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StaffProfile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-staff-availability",
		Method:      http.MethodPatch,
		Path:        "/staff/{staff_id}/availability",
		Summary:     "Set a staff member's availability",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StaffID string              `path:"staff_id"`
		Body    AvailabilityRequest `json:"body"`
	}) (*struct {
		Body domain.StaffProfile `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		target, err := e.Repo.GetStaff(ctx, input.StaffID)
		if err != nil {
			return nil, handleError(err)
		}
		// Staff may flip their own availability; supervisors their unit's.
		if err := principal.Scope().EnsureCanQueryStaff(target); err != nil {
			return nil, handleError(err)
		}
		if err := e.SetStaffAvailability(ctx, input.StaffID, input.Body.AvailabilityStatus, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetStaff(ctx, input.StaffID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StaffProfile `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-staff",
		Method:      http.MethodGet,
		Path:        "/staff",
		Summary:     "List staff profiles",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UnitID string `query:"unit_id" required:"false"`
	}) (*struct {
		Body []domain.StaffProfile `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		scope := principal.Scope()
		unitID := input.UnitID
		if principal.Role != domain.RoleAdmin {
			if unitID == "" {
				unitID = principal.UnitID
			}
			if err := scope.EnsureCanQueryUnit(unitID); err != nil {
				return nil, handleError(err)
			}
		}
		items, err := e.Repo.ListStaff(ctx, unitID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.StaffProfile{}
		}
		return &struct {
			Body []domain.StaffProfile `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-units",
		Method:      http.MethodGet,
		Path:        "/units",
		Summary:     "List organizational units",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.OrganizationalUnit `json:"body"`
	}, error) {
		items, err := e.Repo.ListUnits(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.OrganizationalUnit{}
		}
		return &struct {
			Body []domain.OrganizationalUnit `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-skills",
		Method:      http.MethodGet,
		Path:        "/skills",
		Summary:     "List skills",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Skill `json:"body"`
	}, error) {
		items, err := e.Repo.ListSkills(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Skill{}
		}
		return &struct {
			Body []domain.Skill `json:"body"`
		}{Body: items}, nil
	})
}
