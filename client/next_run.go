package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/cronfire/custom_errors"
	"github.com/RezaEskandarii/cronfire/pgk/parser"
	"github.com/RezaEskandarii/cronfire/types"
)

// CalculateNextRun returns the next time job is due after now. Cron
// expressions are evaluated in now's location. A one_time job returns its
// ExecuteAt unchanged, which may be nil.
func CalculateNextRun(job *types.Job, now time.Time) (*time.Time, error) {
	switch job.JobType {
	case types.JobTypeOneTime:
		return job.ExecuteAt, nil

	case types.JobTypeRecurring:
		if job.IntervalSeconds == nil || *job.IntervalSeconds <= 0 {
			return nil, errors.New("recurring job needs a positive interval")
		}
		next := now.Add(time.Duration(*job.IntervalSeconds) * time.Second)
		return &next, nil

	case types.JobTypeCron:
		if job.CronExpression == nil {
			return nil, fmt.Errorf("%w: missing expression", parser.ErrInvalidExpression)
		}
		next, err := parser.NextCronRun(*job.CronExpression, now)
		if err != nil {
			return nil, err
		}
		return &next, nil
	}
	return nil, fmt.Errorf("%w: %q", custom_errors.ErrUnknownJobType, job.JobType)
}
