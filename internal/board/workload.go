package board

import (
	"context"
	"math"
)

// CapacityHours is a team member's weekly capacity.
const CapacityHours = 40.0

// WorkloadLevel classifies a member's open estimated hours.
type WorkloadLevel string

const (
	WorkloadOK         WorkloadLevel = "OK"
	WorkloadHigh       WorkloadLevel = "HIGH"
	WorkloadOverloaded WorkloadLevel = "OVERLOADED"
)

// Classify maps open hours to a level: up to 30 is OK, up to 40 is HIGH,
// beyond that OVERLOADED.
func Classify(hours float64) WorkloadLevel {
	switch {
	case hours > CapacityHours:
		return WorkloadOverloaded
	case hours > 30:
		return WorkloadHigh
	default:
		return WorkloadOK
	}
}

// Workload is one roster member's load.
type Workload struct {
	Name      string        `json:"name"`
	Role      string        `json:"role"`
	Hours     float64       `json:"hours"`
	Capacity  float64       `json:"capacity"`
	Available float64       `json:"available"`
	Level     WorkloadLevel `json:"level"`
}

// Workload sums open estimated hours for every roster member, in roster
// order. Members without tasks report zero.
func (b *Service) Workload(ctx context.Context) ([]Workload, error) {
	hours, err := b.store.OpenHoursByAssignee(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Workload, 0, len(b.roster))
	for _, m := range b.roster {
		h := hours[m.Name]
		out = append(out, Workload{
			Name:      m.Name,
			Role:      m.Role,
			Hours:     h,
			Capacity:  CapacityHours,
			Available: math.Max(0, CapacityHours-h),
			Level:     Classify(h),
		})
	}
	return out, nil
}
