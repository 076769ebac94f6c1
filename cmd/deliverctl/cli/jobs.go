package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/deliver-app/deliver/internal/app"
	"github.com/deliver-app/deliver/internal/mail"
	"github.com/deliver-app/deliver/jobs"
)

// QueueInspector is the subset of *asynq.Inspector used by JobsCLI.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps queue inspection helpers.
type JobsCLI struct {
	inspector QueueInspector
}

// NewJobsCLI initialises the helpers against the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil || c.inspector == nil {
		return nil
	}
	return c.inspector.Close()
}

// QueueStats summarises the state of one queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports stats for the mail and default queues. Queues that
// never received a task report zeros.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	var out []QueueStats
	for _, queue := range []string{mail.QueueName, jobs.QueueDefault} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats := QueueStats{Queue: queue}
		info, err := c.inspector.GetQueueInfo(queue)
		switch {
		case errors.Is(err, asynq.ErrQueueNotFound):
		case err != nil:
			return nil, fmt.Errorf("inspect %s: %w", queue, err)
		case info != nil:
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// FailedWelcomeMails lists welcome mail tasks awaiting retry or archived
// after exhausting retries.
func (c *JobsCLI) FailedWelcomeMails(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	retry, err := c.inspector.ListRetryTasks(mail.QueueName, asynq.PageSize(size), asynq.Page(1))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, err
	}
	archived, err := c.inspector.ListArchivedTasks(mail.QueueName, asynq.PageSize(size), asynq.Page(1))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, err
	}
	return append(retry, archived...), nil
}

func newJobsCommand() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect background job queues",
	}

	withCLI := func(run func(cmd *cobra.Command, c *JobsCLI) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			c := NewJobsCLI(app.RedisOpts(rt.cfg))
			defer func() {
				if err := c.Close(); err != nil {
					rt.logger.Warn("close inspector", slog.Any("error", err))
				}
			}()
			return run(cmd, c)
		}
	}

	var size int
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List welcome mails that failed delivery",
		RunE: withCLI(func(cmd *cobra.Command, c *JobsCLI) error {
			tasks, err := c.FailedWelcomeMails(size)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tRETRIED\tLAST ERROR")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.State, t.Retried, t.LastErr)
			}
			return w.Flush()
		}),
	}
	failed.Flags().IntVar(&size, "size", 10, "maximum tasks per state")

	jobsCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show queue depth",
			RunE: withCLI(func(cmd *cobra.Command, c *JobsCLI) error {
				stats, err := c.InspectQueues(cmd.Context())
				if err != nil {
					return err
				}
				return writeStats(cmd, stats)
			}),
		},
		failed,
	)
	return jobsCmd
}

func writeStats(cmd *cobra.Command, stats []QueueStats) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	return w.Flush()
}
