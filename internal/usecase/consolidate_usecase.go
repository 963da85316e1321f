package usecase

import (
	"fmt"
	"log"

	"github.com/aldirahman/toolradar/internal/dedup"
	"github.com/aldirahman/toolradar/internal/model"
	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/google/uuid"
)

// MergeGroup is one set of detections the consolidator considers duplicates:
// same tool, company names that the dedup engine says denote one company.
// Keep is always the earliest-identified record.
type MergeGroup struct {
	Key    string
	Tool   string
	Keep   model.Detection
	Remove []model.Detection
}

// ConsolidateResult reports an applied consolidation.
type ConsolidateResult struct {
	GroupsMerged int
	RowsDeleted  int64
}

// ConsolidateUsecase is the offline maintenance pass over the company
// registry. Plan never mutates; Apply only deletes what a Plan proposed.
type ConsolidateUsecase struct {
	detections repository.DetectionRepositoryInterface
}

func NewConsolidateUsecase(detections repository.DetectionRepositoryInterface) *ConsolidateUsecase {
	return &ConsolidateUsecase{detections: detections}
}

// Plan loads the full registry and groups duplicates with a pairwise scan.
// O(n²) is fine here: a few thousand rows, run on demand, never on the hot
// path. Records arrive ordered by identified_at so the first member of each
// group is the one to keep.
func (uc *ConsolidateUsecase) Plan() ([]MergeGroup, error) {
	detections, err := uc.detections.FindAll()
	if err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}

	grouped := make([]bool, len(detections))
	var groups []MergeGroup

	for i := range detections {
		if grouped[i] {
			continue
		}
		group := MergeGroup{
			Key:  dedup.Normalize(detections[i].Company),
			Tool: detections[i].Tool,
			Keep: detections[i],
		}
		for j := i + 1; j < len(detections); j++ {
			if grouped[j] || detections[j].Tool != detections[i].Tool {
				continue
			}
			if dedup.SameCompany(detections[i].Company, detections[j].Company) {
				group.Remove = append(group.Remove, detections[j])
				grouped[j] = true
			}
		}
		if len(group.Remove) > 0 {
			groups = append(groups, group)
		}
	}

	return groups, nil
}

// Apply deletes every non-kept record of the given plan.
func (uc *ConsolidateUsecase) Apply(groups []MergeGroup) (*ConsolidateResult, error) {
	result := &ConsolidateResult{}

	var ids []uuid.UUID
	for _, group := range groups {
		for _, d := range group.Remove {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return result, nil
	}

	deleted, err := uc.detections.DeleteByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("delete duplicate detections: %w", err)
	}
	result.GroupsMerged = len(groups)
	result.RowsDeleted = deleted

	log.Printf("[consolidate] Merged %d group(s), deleted %d row(s)", result.GroupsMerged, result.RowsDeleted)
	return result, nil
}
