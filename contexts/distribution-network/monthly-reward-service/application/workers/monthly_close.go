package workers

import (
	"context"
	"log/slog"
	"time"

	"arbor/contexts/distribution-network/monthly-reward-service/application"
)

// MonthlyCloseJob generates the statement for the month that just ended. It
// is scheduled by the composition root (cron, first days of the month) but
// can be invoked by hand for backfills via RunForMonth.
type MonthlyCloseJob struct {
	Service application.Service
	Clock   func() time.Time
	Logger  *slog.Logger
}

func (j MonthlyCloseJob) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock().UTC()
	}
	return j.RunForMonth(ctx, now.AddDate(0, -1, 0).Format("2006-01"))
}

func (j MonthlyCloseJob) RunForMonth(ctx context.Context, month string) error {
	statement, err := j.Service.GenerateMonthlyCommissionStatement(ctx, month)
	if err != nil {
		j.logger().Error("monthly close failed",
			"event", "monthly_close_failed",
			"module", "distribution-network/monthly-reward-service",
			"layer", "worker",
			"month", month,
			"error", err,
		)
		return err
	}
	j.logger().Info("monthly close finished",
		"event", "monthly_close_finished",
		"module", "distribution-network/monthly-reward-service",
		"layer", "worker",
		"month", month,
		"statement_id", statement.StatementID,
	)
	return nil
}

func (j MonthlyCloseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
