package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/0xPuncker/jobwire/internal/jobdetail"
	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/0xPuncker/jobwire/pkg/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrJobExists          = errors.New("job already exists")
	ErrTaskNotRegistered  = errors.New("task not registered")
	ErrNotDurable         = errors.New("job without a trigger must be durable")
	ErrSchedulerShutdown  = errors.New("scheduler has been shut down")
	ErrSchedulerStarted   = errors.New("scheduler already started")
	ErrListenerNotFound   = errors.New("job listener not found")
	ErrListenerRegistered = errors.New("job listener already registered")
)

const defaultMaxConcurrent = 10

// Task is the work run when a job fires. Generic tasks can read the job name
// from descriptor.Value(types.JobNameKey).
type Task func(ctx context.Context, descriptor *types.JobDescriptor) error

// JobInfo is a read-only view of a stored job.
type JobInfo struct {
	Name             string    `json:"name"`
	Group            string    `json:"group"`
	Mode             string    `json:"mode"`
	Durable          bool      `json:"durable"`
	RequestsRecovery bool      `json:"requests_recovery"`
	TaskName         string    `json:"task"`
	Schedule         string    `json:"schedule,omitempty"`
	Description      string    `json:"description,omitempty"`
	Scheduled        bool      `json:"scheduled"`
	NextRun          time.Time `json:"next_run,omitzero"`
}

type jobEntry struct {
	descriptor  *types.JobDescriptor
	taskName    string
	schedule    string
	description string
	entryID     cron.EntryID
	scheduled   bool
	runner      cron.Job
}

type listenerEntry struct {
	listener types.JobListener
	matchers []types.Matcher
}

type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *logrus.Logger
	jobs   map[types.JobKey]*jobEntry
	mu     sync.RWMutex

	started  bool
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc
	running  sync.WaitGroup

	tasks     map[string]Task
	guards    map[types.JobKey]cron.Job
	listeners map[string]*listenerEntry
	lmu       sync.RWMutex

	maxConcurrent  int
	activeJobs     int
	activeJobsLock sync.Mutex
}

func NewScheduler(logger *logrus.Logger, config types.JobConfig) *Scheduler {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	parser := NewParser()
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:          cron.New(cron.WithParser(parser)),
		parser:        parser,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		jobs:          make(map[types.JobKey]*jobEntry),
		tasks:         make(map[string]Task),
		guards:        make(map[types.JobKey]cron.Job),
		listeners:     make(map[string]*listenerEntry),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// NewParser accepts five-field specs, six-field specs with seconds, and
// descriptors such as @hourly or @every 5m.
func NewParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSchedule reports whether spec is a schedule the scheduler accepts.
func ValidateSchedule(spec string) error {
	if _, err := NewParser().Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) RegisterTask(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = task
}

// LoadPredefinedJobs builds a descriptor for every enabled job, binds its
// listeners and stores it. Jobs without a schedule are stored without a
// trigger and must be durable. Listeners referenced by the jobs have to be
// registered first.
func (s *Scheduler) LoadPredefinedJobs(jobs []types.Job) error {
	for _, job := range jobs {
		if !job.Enabled {
			s.logger.Infof("Skipping disabled job: %s", job.Name)
			continue
		}

		if err := s.checkJob(job); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", types.NewJobKey(job.Name, job.Group), err)
		}

		factory, err := jobdetail.NewFactory(job.JobDetailConfig, s, s.logger)
		if err != nil {
			return fmt.Errorf("failed to build job %q: %w", job.Name, err)
		}

		descriptor := factory.Object()
		if job.Schedule == "" {
			err = s.AddJob(descriptor, job.TaskName, job.Description)
		} else {
			err = s.ScheduleJob(descriptor, job.TaskName, job.Schedule, job.Description)
		}
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", descriptor.Key(), err)
		}
	}

	return nil
}

// checkJob rejects a job the scheduler would refuse before any listener is
// bound to its key.
func (s *Scheduler) checkJob(job types.Job) error {
	if job.Schedule == "" {
		if !job.Durable {
			return ErrNotDurable
		}
	} else if _, err := s.parser.Parse(job.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", job.Schedule, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shutdown {
		return ErrSchedulerShutdown
	}
	if _, exists := s.tasks[job.TaskName]; !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotRegistered, job.TaskName)
	}
	if _, exists := s.jobs[types.NewJobKey(job.Name, job.Group)]; exists {
		return ErrJobExists
	}
	return nil
}

// AddJob stores a durable job without a trigger. It can be fired with TriggerJob.
func (s *Scheduler) AddJob(descriptor *types.JobDescriptor, taskName, description string) error {
	if !descriptor.Durable() {
		return fmt.Errorf("%w: %s", ErrNotDurable, descriptor.Key())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.newEntryLocked(descriptor, taskName, description)
	if err != nil {
		return err
	}
	s.jobs[descriptor.Key()] = entry

	s.logger.WithFields(logrus.Fields{
		"job_name":    descriptor.Key().Name,
		"job_group":   descriptor.Key().Group,
		"task":        taskName,
		"mode":        descriptor.Mode().String(),
		"description": description,
	}).Info("Durable job stored")

	return nil
}

// ScheduleJob stores a job together with its cron trigger.
func (s *Scheduler) ScheduleJob(descriptor *types.JobDescriptor, taskName, schedule, description string) error {
	sched, err := s.parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.newEntryLocked(descriptor, taskName, description)
	if err != nil {
		return err
	}

	entry.entryID = s.cron.Schedule(sched, entry.runner)
	entry.schedule = schedule
	entry.scheduled = true
	s.jobs[descriptor.Key()] = entry

	s.logger.WithFields(logrus.Fields{
		"job_name":    descriptor.Key().Name,
		"job_group":   descriptor.Key().Group,
		"schedule":    schedule,
		"task":        taskName,
		"mode":        descriptor.Mode().String(),
		"durable":     descriptor.Durable(),
		"description": description,
	}).Info("Job scheduled successfully")

	return nil
}

func (s *Scheduler) newEntryLocked(descriptor *types.JobDescriptor, taskName, description string) (*jobEntry, error) {
	if s.shutdown {
		return nil, ErrSchedulerShutdown
	}

	key := descriptor.Key()
	if _, exists := s.jobs[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrJobExists, key)
	}
	if _, exists := s.tasks[taskName]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotRegistered, taskName)
	}

	// The skip guard outlives the entry so a job deleted mid-run and stored
	// again under the same key still cannot overlap its earlier execution.
	var runner cron.Job = cron.FuncJob(func() { s.execute(key) })
	if descriptor.Stateful() {
		guarded, exists := s.guards[key]
		if !exists {
			guarded = cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.logger))).Then(runner)
			s.guards[key] = guarded
		}
		runner = guarded
	}

	return &jobEntry{
		descriptor:  descriptor,
		taskName:    taskName,
		description: description,
		runner:      runner,
	}, nil
}

// UnscheduleJob removes the job's trigger. A job that is not durable is
// deleted with its trigger.
func (s *Scheduler) UnscheduleJob(key types.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}

	if entry.scheduled {
		s.cron.Remove(entry.entryID)
		entry.scheduled = false
		entry.schedule = ""
	}

	if !entry.descriptor.Durable() {
		delete(s.jobs, key)
		s.logger.WithField("job", key.String()).Info("Non-durable job removed with its trigger")
		return nil
	}

	s.logger.WithField("job", key.String()).Info("Job unscheduled, durable job kept")
	return nil
}

// DeleteJob removes the job and its trigger regardless of durability.
func (s *Scheduler) DeleteJob(key types.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	if entry.scheduled {
		s.cron.Remove(entry.entryID)
	}
	delete(s.jobs, key)
	return nil
}

// TriggerJob fires a stored job now, outside its schedule. Stateful jobs
// still skip when an execution is in progress.
func (s *Scheduler) TriggerJob(key types.JobKey) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shutdown {
		return ErrSchedulerShutdown
	}

	entry, exists := s.jobs[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		entry.runner.Run()
	}()

	return nil
}

func (s *Scheduler) execute(key types.JobKey) {
	s.mu.RLock()
	entry, exists := s.jobs[key]
	var task Task
	if exists {
		task = s.tasks[entry.taskName]
	}
	s.mu.RUnlock()

	if !exists || task == nil {
		s.logger.WithField("job", key.String()).Warn("Fired job is no longer stored, skipping")
		return
	}

	s.activeJobsLock.Lock()
	if s.activeJobs >= s.maxConcurrent {
		s.activeJobsLock.Unlock()
		s.logger.Warnf("Max concurrent jobs reached, skipping job: %s", key)
		return
	}
	s.activeJobs++
	active := s.activeJobs
	s.activeJobsLock.Unlock()

	defer func() {
		s.activeJobsLock.Lock()
		s.activeJobs--
		s.activeJobsLock.Unlock()
	}()

	exec := types.JobExecution{
		Descriptor: entry.descriptor,
		FireTime:   time.Now(),
	}
	listeners := s.matchingListeners(key)

	for _, l := range listeners {
		l.JobToBeExecuted(s.ctx, exec)
	}

	s.logger.WithFields(logrus.Fields{
		"job_name":    key.Name,
		"job_group":   key.Group,
		"schedule":    entry.schedule,
		"task":        entry.taskName,
		"active_jobs": active,
	}).Info("Starting job execution")

	start := time.Now()
	err := runTask(s.ctx, task, entry.descriptor)
	duration := time.Since(start)

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"job_name":  key.Name,
			"job_group": key.Group,
			"error":     err.Error(),
			"duration":  utils.FormatElapsed(duration),
		}).Error("Job execution failed")
	} else {
		s.logger.WithFields(logrus.Fields{
			"job_name":  key.Name,
			"job_group": key.Group,
			"duration":  utils.FormatElapsed(duration),
		}).Info("Job execution completed successfully")
	}

	for _, l := range listeners {
		l.JobWasExecuted(s.ctx, exec, duration, err)
	}
}

func runTask(ctx context.Context, task Task, descriptor *types.JobDescriptor) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return task(ctx, descriptor)
}

func (s *Scheduler) GetJob(key types.JobKey) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.jobs[key]
	if !exists {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	return s.infoLocked(entry), nil
}

func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, entry := range s.jobs {
		jobs = append(jobs, s.infoLocked(entry))
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Group == jobs[j].Group {
			return jobs[i].Name < jobs[j].Name
		}
		return jobs[i].Group < jobs[j].Group
	})

	return jobs
}

func (s *Scheduler) infoLocked(entry *jobEntry) JobInfo {
	d := entry.descriptor
	info := JobInfo{
		Name:             d.Key().Name,
		Group:            d.Key().Group,
		Mode:             d.Mode().String(),
		Durable:          d.Durable(),
		RequestsRecovery: d.RequestsRecovery(),
		TaskName:         entry.taskName,
		Schedule:         entry.schedule,
		Description:      entry.description,
		Scheduled:        entry.scheduled,
	}
	if entry.scheduled && s.started {
		info.NextRun = s.cron.Entry(entry.entryID).Next
	}
	return info
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return ErrSchedulerShutdown
	}
	if s.started {
		return ErrSchedulerStarted
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("Scheduler started...")

	return nil
}

// Stop halts the triggers and waits for running scheduled executions. The
// lock is released first since executions read the job table.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// Shutdown stops the scheduler for good and waits for manually triggered
// executions to finish.
func (s *Scheduler) Shutdown() {
	s.Stop()

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	s.cancel()
	s.running.Wait()
	s.logger.Info("Scheduler shut down")
}

// MaxConcurrent is the effective cap on simultaneous executions.
func (s *Scheduler) MaxConcurrent() int {
	return s.maxConcurrent
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
