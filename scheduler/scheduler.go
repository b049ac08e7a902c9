// Package scheduler sends templated messages on cron schedules.
//
// Jobs are read from cron.toml:
//
//	[[cron]]
//	periodicity = "0 30 7 * * *"
//	topic = "weather.request"
//	message = { text = "today", response_topics = ["telegram.send"] }
//
// Periodicity takes five fields, or six with a leading seconds field, plus the
// usual descriptors such as @hourly.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/alfredmq/alfred-go/contracts"
)

// DefaultFilename is read from the working directory
const DefaultFilename = "cron.toml"

var ErrNoJobs = errors.New("scheduler: no jobs configured")

// JobError reports a job whose schedule cannot be parsed
type JobError struct {
	Index       int
	Periodicity string
	Err         error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("cron job %d: invalid periodicity %q: %v", e.Index, e.Periodicity, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Job sends Message on Topic whenever Periodicity fires
type Job struct {
	Periodicity string                    `toml:"periodicity"`
	Topic       string                    `toml:"topic"`
	Message     contracts.MessageTemplate `toml:"message"`
}

// Build returns the message a firing sends
func (j Job) Build() contracts.Message {
	return j.Message.Generate(contracts.Message{})
}

type file struct {
	Cron []Job `toml:"cron"`
}

// Parse decodes the [[cron]] entries of a TOML document
func Parse(data []byte) ([]Job, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse cron: %w", err)
	}
	return f.Cron, nil
}

// LoadFile reads and parses a cron file
func LoadFile(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Sender publishes a message
type Sender interface {
	Send(ctx context.Context, topic string, msg contracts.Message) error
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a periodicity expression
func ParseSchedule(periodicity string) (cron.Schedule, error) {
	return parser.Parse(periodicity)
}

// Scheduler fires jobs through a Sender
type Scheduler struct {
	sender   Sender
	jobs     []Job
	logger   *slog.Logger
	location *time.Location
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the time zone schedules are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// New validates every job schedule
func New(sender Sender, jobs []Job, options ...Option) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	for i, job := range jobs {
		if _, err := ParseSchedule(job.Periodicity); err != nil {
			return nil, &JobError{Index: i, Periodicity: job.Periodicity, Err: err}
		}
	}

	s := &Scheduler{
		sender:   sender,
		jobs:     jobs,
		logger:   slog.Default(),
		location: time.Local,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Fire sends the message of one job
func (s *Scheduler) Fire(ctx context.Context, job Job) error {
	s.logger.Debug("firing job", "topic", job.Topic, "periodicity", job.Periodicity)
	return s.sender.Send(ctx, job.Topic, job.Build())
}

// Run fires jobs until ctx is done or a send fails
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 1)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	for _, job := range s.jobs {
		_, err := c.AddFunc(job.Periodicity, func() {
			if err := s.Fire(runCtx, job); err != nil {
				select {
				case errs <- err:
				default:
				}
			}
		})
		if err != nil {
			return err
		}
	}

	c.Start()
	for _, entry := range c.Entries() {
		s.logger.Info("job scheduled", "next", entry.Next)
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errs:
	}
	cancel()
	<-c.Stop().Done()
	return err
}

// cronLogger routes cron's logging to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
