package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Workspace  Workspace  `yaml:"workspace"`
	Thresholds Thresholds `yaml:"thresholds"`
	Syntax     Syntax     `yaml:"syntax"`
	Lint       Lint       `yaml:"lint"`
	Functional Functional `yaml:"functional"`
	Execution  Execution  `yaml:"execution"`
	Mock       Mock       `yaml:"mock"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Submission Submission `yaml:"submission"`
	Results    Results    `yaml:"results"`
	Watch      Watch      `yaml:"watch"`
}

type Workspace struct {
	Root       string `yaml:"root" validate:"required"`
	ScriptsDir string `yaml:"scripts_dir" validate:"required"`
	Extension  string `yaml:"extension" validate:"required,startswith=."`
}

// Thresholds are percentages shared read-only by the evaluator, the
// aggregator and the pipeline. Pass by value.
type Thresholds struct {
	SyntaxMinimum         float64 `yaml:"syntax_minimum" json:"syntax_minimum" validate:"gte=0,lte=100"`
	ComplianceMinimum     float64 `yaml:"compliance_minimum" json:"compliance_minimum" validate:"gte=0,lte=100"`
	FunctionalMinimum     float64 `yaml:"functional_minimum" json:"functional_minimum" validate:"gte=0,lte=100"`
	AutoPRThreshold       float64 `yaml:"auto_pr_threshold" json:"auto_pr_threshold" validate:"gte=0,lte=100,gtfield=ManualReviewThreshold"`
	ManualReviewThreshold float64 `yaml:"manual_review_threshold" json:"manual_review_threshold" validate:"gte=0,lte=100"`
	FailureThreshold      float64 `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=0,lte=100"`
}

type Syntax struct {
	Shells         []string `yaml:"shells" validate:"min=1,dive,required"`
	Checker        []string `yaml:"checker" validate:"min=1,dive,required"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=1"`
}

// Lint configures an optional analyzer; findings become warnings only.
type Lint struct {
	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=1"`
}

type Functional struct {
	Interpreter    string            `yaml:"interpreter" validate:"required"`
	TimeoutSeconds int               `yaml:"timeout_seconds" validate:"gte=1"`
	Env            map[string]string `yaml:"env"`
}

type Execution struct {
	Mode        string  `yaml:"mode" validate:"oneof=local docker"`
	Workers     int     `yaml:"workers" validate:"gte=1"`
	Image       string  `yaml:"image" validate:"required_if=Mode docker"`
	CPULimit    float64 `yaml:"cpu_limit" validate:"gte=0"`
	MemoryLimit int64   `yaml:"memory_limit" validate:"gte=0"`
}

type Mock struct {
	Command   string `yaml:"command" validate:"required,excludesall=/"`
	RulesFile string `yaml:"rules_file"`
}

type Pipeline struct {
	AutoPREnabled      bool    `yaml:"auto_pr_enabled"`
	RetroactiveTesting bool    `yaml:"retroactive_testing"`
	ClusterName        string  `yaml:"cluster_name" validate:"required"`
	RetroConfidence    float64 `yaml:"retro_confidence" validate:"gte=0,lte=100"`
}

type Submission struct {
	Kind           string   `yaml:"kind" validate:"oneof=none command webhook git"`
	Command        []string `yaml:"command"`
	URL            string   `yaml:"url" validate:"omitempty,url"`
	PRCommand      []string `yaml:"pr_command"`
	Remote         string   `yaml:"remote"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=1"`
}

type Results struct {
	Backend    string `yaml:"backend" validate:"oneof=json sqlite"`
	Dir        string `yaml:"dir" validate:"required"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Watch struct {
	DebounceMillis int `yaml:"debounce_millis" validate:"gte=0"`
}

// DefaultThresholds returns the stock gate: 90/85/80 minimums, auto-PR at 92,
// manual review at 85.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SyntaxMinimum:         90,
		ComplianceMinimum:     85,
		FunctionalMinimum:     80,
		AutoPRThreshold:       92,
		ManualReviewThreshold: 85,
		FailureThreshold:      75,
	}
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	return &Config{
		Workspace: Workspace{
			Root:       ".",
			ScriptsDir: "netappfiles",
			Extension:  ".sh",
		},
		Thresholds: DefaultThresholds(),
		Syntax: Syntax{
			Shells:         []string{"#!/bin/bash"},
			Checker:        []string{"bash", "-n"},
			TimeoutSeconds: 10,
		},
		Lint: Lint{TimeoutSeconds: 10},
		Functional: Functional{
			Interpreter:    "bash",
			TimeoutSeconds: 45,
			Env: map[string]string{
				"ANF_RESOURCE_GROUP": "test-rg-1234",
				"ANF_ACCOUNT":        "test-account-1234",
				"ANF_VOLUME":         "test-volume-1234",
				"ANF_POOL":           "test-pool-1234",
			},
		},
		Execution: Execution{
			Mode:    "local",
			Workers: 4,
			Image:   "bash:5",
		},
		Mock: Mock{Command: "az"},
		Pipeline: Pipeline{
			AutoPREnabled:      true,
			RetroactiveTesting: true,
			ClusterName:        "netappfiles-feature-generator",
			RetroConfidence:    85,
		},
		Submission: Submission{
			Kind:           "none",
			Remote:         "origin",
			TimeoutSeconds: 60,
		},
		Results: Results{
			Backend: "json",
			Dir:     "cluster_job_results",
		},
		Watch: Watch{DebounceMillis: 500},
	}
}

// Load reads a YAML config on top of Default. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return cfg, validate(cfg)
	}
	return Load(path)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg *Config) error {
	if cfg.Results.Backend == "sqlite" && cfg.Results.SQLitePath == "" {
		cfg.Results.SQLitePath = cfg.Results.Dir + "/jobs.db"
	}
	switch {
	case cfg.Submission.Kind == "command" && len(cfg.Submission.Command) == 0:
		return fmt.Errorf("submission: command is required for kind %q", cfg.Submission.Kind)
	case cfg.Submission.Kind == "webhook" && cfg.Submission.URL == "":
		return fmt.Errorf("submission: url is required for kind %q", cfg.Submission.Kind)
	}
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

func (s Syntax) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (l Lint) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (f Functional) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func (s Submission) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMillis) * time.Millisecond
}
