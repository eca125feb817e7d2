package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/0xPuncker/jobwire/internal/config"
	"github.com/0xPuncker/jobwire/internal/cron"
	"github.com/0xPuncker/jobwire/internal/jobdetail"
)

func main() {
	jobsPath := flag.String("jobs", "", "path to jobs YAML file")
	flag.Parse()

	jobs, err := config.LoadJobs(*jobsPath)
	if err != nil {
		fmt.Printf("Failed to load jobs: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, job := range jobs.Predefined {
		fmt.Printf("\nJob: %s (group %q)\n", job.Name, job.Group)

		descriptor, err := jobdetail.BuildFromConfig(job.JobDetailConfig)
		if err != nil {
			var cfgErr *jobdetail.ConfigurationError
			if errors.As(err, &cfgErr) {
				fmt.Printf("  configuration error: %v\n", cfgErr)
			} else {
				fmt.Printf("  error: %v\n", err)
			}
			failed++
			continue
		}

		fmt.Printf("  key:               %s\n", descriptor.Key())
		fmt.Printf("  mode:              %s\n", descriptor.Mode())
		fmt.Printf("  durable:           %t\n", descriptor.Durable())
		fmt.Printf("  requests recovery: %t\n", descriptor.RequestsRecovery())

		data := descriptor.Data()
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  data[%s]: %s\n", k, data[k])
		}

		if len(job.ListenerNames) > 0 {
			fmt.Printf("  listeners:         %s\n", strings.Join(job.ListenerNames, ", "))
		}

		switch {
		case job.Schedule != "":
			if err := cron.ValidateSchedule(job.Schedule); err != nil {
				fmt.Printf("  schedule error: %v\n", err)
				failed++
				continue
			}
			fmt.Printf("  schedule:          %s\n", job.Schedule)
		case !descriptor.Durable():
			fmt.Printf("  error: job has no schedule and is not durable\n")
			failed++
			continue
		default:
			fmt.Printf("  schedule:          none (durable, trigger manually)\n")
		}
	}

	fmt.Printf("\n%d jobs, %d invalid\n", len(jobs.Predefined), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
