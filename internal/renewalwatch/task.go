package renewalwatch

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskOverdueSweep is the asynq task type for the periodic overdue sweep.
const TaskOverdueSweep = "renewal:overdue_sweep"

// NewOverdueSweepTask builds the sweep task. The task carries no payload; the
// sweep derives everything from the database.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueSweep, nil)
}

// Handler adapts the sweeper to asynq.
func (s *Sweeper) Handler() asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return s.SweepLocked(ctx)
	}
}
