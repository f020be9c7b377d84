package engine

import (
	"sort"

	"caseline/internal/domain"
)

// SkillScorer rates a candidate's skill fit on a 0-100 scale.
type SkillScorer interface {
	SkillScore(p domain.StaffProfile, required []string) float64
}

// WeightedSkillScorer gives every qualified candidate a 90-point base and
// a capped additive bonus per skill beyond the requirement, so a surplus
// skill never outweighs a clear capacity gap. With no requirement the
// score grows with breadth from a 60-point base.
type WeightedSkillScorer struct {
	Bonus float64
	Cap   float64
}

func (s WeightedSkillScorer) SkillScore(p domain.StaffProfile, required []string) float64 {
	if len(required) == 0 {
		score := 60 + 8*float64(len(p.Skills))
		if score > 100 {
			return 100
		}
		return score
	}
	bonus := s.Bonus * float64(len(p.Skills)-len(required))
	if bonus < 0 {
		bonus = 0
	}
	if bonus > s.Cap {
		bonus = s.Cap
	}
	return 90 + bonus
}

// ScoreBreakdown carries one candidate's per-factor scores alongside the
// weighted total.
type ScoreBreakdown struct {
	StaffID           string  `json:"staff_id"`
	SkillScore        float64 `json:"skill_score"`
	CapacityScore     float64 `json:"capacity_score"`
	AvailabilityScore float64 `json:"availability_score"`
	UnitScore         float64 `json:"unit_score"`
	Total             float64 `json:"total"`

	currentCount int
}

type scoringInput struct {
	staff      []domain.StaffProfile
	required   []string
	originUnit string
	unitLoads  map[string]int
	unitLimits map[string]int
}

// scoreCandidates filters the pool down to eligible candidates and ranks
// them. Ordering is total descending, then current load ascending, then
// staff id ascending, so results are deterministic for equal inputs.
func (e Engine) scoreCandidates(in scoringInput) []ScoreBreakdown {
	w := e.Config.Scoring
	var ranked []ScoreBreakdown
	for _, p := range in.staff {
		if p.AvailabilityStatus != domain.AvailabilityAvailable {
			continue
		}
		if !p.HasSkills(in.required) {
			continue
		}
		if p.CurrentAssignmentCount >= p.IndividualWIPLimit {
			continue
		}
		unitLimit, known := in.unitLimits[p.UnitID]
		if known && in.unitLoads[p.UnitID] >= unitLimit {
			continue
		}
		b := ScoreBreakdown{
			StaffID:           p.ID,
			SkillScore:        e.Skill.SkillScore(p, in.required),
			CapacityScore:     (1 - float64(p.CurrentAssignmentCount)/float64(p.IndividualWIPLimit)) * 100,
			AvailabilityScore: 100,
			currentCount:      p.CurrentAssignmentCount,
		}
		// A candidate inside the requested unit is a full match; without
		// a requested unit the score reflects the unit's headroom.
		if in.originUnit != "" && p.UnitID == in.originUnit {
			b.UnitScore = 100
		} else if known && unitLimit > 0 {
			b.UnitScore = (1 - float64(in.unitLoads[p.UnitID])/float64(unitLimit)) * 100
			if b.UnitScore < 0 {
				b.UnitScore = 0
			}
		}
		b.Total = w.SkillWeight*b.SkillScore +
			w.CapacityWeight*b.CapacityScore +
			w.AvailabilityWeight*b.AvailabilityScore +
			w.UnitWeight*b.UnitScore
		ranked = append(ranked, b)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		if ranked[i].currentCount != ranked[j].currentCount {
			return ranked[i].currentCount < ranked[j].currentCount
		}
		return ranked[i].StaffID < ranked[j].StaffID
	})
	return ranked
}

// unitLoadSnapshot sums open assignments per unit over available members
// only, matching how unit capacity is enforced.
func unitLoadSnapshot(staff []domain.StaffProfile) map[string]int {
	loads := map[string]int{}
	for _, p := range staff {
		if p.AvailabilityStatus == domain.AvailabilityAvailable {
			loads[p.UnitID] += p.CurrentAssignmentCount
		}
	}
	return loads
}
