package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJobsFile = "jobs.yaml"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Jobs      types.JobConfig `json:"jobs"`
	JobsFile  string          `json:"jobs_file"`
	Listeners ListenersConfig `json:"listeners"`
}

type ServerConfig struct {
	Port         string `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// ListenersConfig names the job listeners registered with the scheduler at
// startup. Jobs refer to them through listener_names.
type ListenersConfig struct {
	Logging []string      `json:"logging"`
	History HistoryConfig `json:"history"`
	Slack   SlackConfig   `json:"slack"`
}

// SlackConfig enables the Slack listener when Name is set.
type SlackConfig struct {
	Name          string `json:"name"`
	WebhookURL    string `json:"webhook_url"`
	NotifySuccess bool   `json:"notify_success"`
}

type HistoryConfig struct {
	Name  string `json:"name"`
	TTL   string `json:"ttl"`
	Limit int    `json:"limit"`
}

// TTLDuration parses TTL. An empty TTL yields zero, which the history
// listener replaces with its default.
func (h HistoryConfig) TTLDuration() (time.Duration, error) {
	if h.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(h.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid history ttl %q: %w", h.TTL, err)
	}
	return ttl, nil
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if err := godotenv.Load(); err != nil {
			if err := godotenv.Load(".env.local"); err != nil {
				fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
			}
		}

		maxConcurrent, err := strconv.Atoi(getEnv("MAX_CONCURRENT_JOBS", "10"))
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_CONCURRENT_JOBS: %w", err)
		}

		return &Config{
			Server: ServerConfig{
				Port: getEnv("PORT", "8080"),
			},
			Jobs: types.JobConfig{
				MaxConcurrent: maxConcurrent,
			},
			JobsFile: getEnv("JOBS_FILE", ""),
			Listeners: ListenersConfig{
				Logging: []string{getEnv("LOGGING_LISTENER", "loggingListener")},
				History: HistoryConfig{
					Name: getEnv("HISTORY_LISTENER", "historyListener"),
					TTL:  getEnv("HISTORY_TTL", "1h"),
				},
				Slack: SlackConfig{
					Name:       getEnv("SLACK_LISTENER", ""),
					WebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
				},
			},
		}, nil
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Jobs: types.JobConfig{
			MaxConcurrent: 10,
		},
		Listeners: ListenersConfig{
			Logging: []string{"loggingListener"},
			History: HistoryConfig{
				Name: "historyListener",
				TTL:  "1h",
			},
		},
	}
}

// LoadJobs reads job definitions from a YAML file. With an empty path it
// looks for config/jobs.yaml or jobs.yaml from the working directory upwards.
func LoadJobs(path string) (*types.JobConfig, error) {
	if path == "" {
		found, err := findJobsFile()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	var jobs types.JobConfig
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file: %w", err)
	}

	return &jobs, nil
}

// MergeJobs appends the file's jobs to the inline ones. A non-zero limit in
// the file wins.
func (c *Config) MergeJobs(file *types.JobConfig) {
	if file == nil {
		return
	}
	if file.MaxConcurrent > 0 {
		c.Jobs.MaxConcurrent = file.MaxConcurrent
	}
	c.Jobs.Predefined = append(c.Jobs.Predefined, file.Predefined...)
}

func findJobsFile() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		for _, candidate := range []string{
			filepath.Join(wd, "config", defaultJobsFile),
			filepath.Join(wd, defaultJobsFile),
		} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(wd)
		if parent == wd {
			return "", fmt.Errorf("jobs file %s not found", defaultJobsFile)
		}
		wd = parent
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
