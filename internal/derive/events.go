package derive

import (
	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
)

func (d *deriver) contentLoads() error {
	loads, err := enrolledEvents(d, SourceContentLoads, entities.KeyContentLoads, DropContentLoadsUnenrolled, entities.ContentLoadFromRow)
	if err != nil {
		return err
	}
	d.ds.ContentLoads = loads
	return nil
}

func (d *deriver) problemAttempts() error {
	attempts, err := enrolledEvents(d, SourceProblemAttempts, entities.KeyIBProblemAttempts, DropProblemAttemptsUnenrolled, entities.IBProblemAttemptFromRow)
	if err != nil {
		return err
	}
	d.ds.IBProblemAttempts = attempts
	return nil
}

func (d *deriver) inputSubmissions() error {
	subs, err := enrolledEvents(d, SourceInputSubmissions, entities.KeyIBInputSubmissions, DropInputSubmissionsUnenrolled, entities.IBInputSubmissionFromRow)
	if err != nil {
		return err
	}
	d.ds.IBInputSubmissions = subs
	return nil
}

// enrolledEvents projects an event table onto the entity columns and keeps
// only events whose (user, course) pair has an enrollment. Events from
// unenrolled or test accounts are dropped and counted.
func enrolledEvents[T core.Record](d *deriver, source, key, drop string, build func(core.Row) T) ([]T, error) {
	src, err := d.in.Lookup(source)
	if err != nil {
		return nil, err
	}
	// an empty event document carries no keys to infer columns from
	if src.Len() == 0 {
		return []T{}, nil
	}
	sel, err := src.Select(core.MustGet(key).Columns()...)
	if err != nil {
		return nil, err
	}

	kept := core.NewTable(key, sel.Columns...)
	for _, row := range sel.Rows {
		u, err := core.ToUUID(row["user_uuid"])
		if err != nil {
			return nil, fieldError(key, kept.Len(), "user_uuid", row["user_uuid"], err)
		}
		course, err := core.ToInt(row["course_id"])
		if err != nil {
			return nil, fieldError(key, kept.Len(), "course_id", row["course_id"], err)
		}
		if _, ok := d.enrolled[enrollmentKey{u, course}]; !ok {
			d.drops[drop]++
			continue
		}
		kept.Append(row)
	}

	return entities.DecodeTable(key, kept, build)
}
