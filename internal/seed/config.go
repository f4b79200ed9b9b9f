// Package seed loads demo data into a running meeting service through its HTTP API.
package seed

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by the seeding runner.
var (
	ErrInvalidPlan  = errors.New("invalid seed plan")
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("seed verification failed")
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL  string        // Base URL of the service
	PlanFile string        // YAML file with the roster and event info
	Password string        // Treasurer password
	Meetings int           // Meetings to create; overrides the plan when positive
	Timeout  time.Duration // HTTP request timeout
	Retries  uint64        // Retries on backpressure and unavailability
	Seed     uint64        // Random seed for partner selection
}

// Plan is the content of a seed file.
//
//	event:
//	  title: Cena di primavera
//	  date: "2025-04-12"
//	participants:
//	  round1: [Anna, Bruno]
//	  round2: [Anna, Carla]
//	meetings: 5
//
// Participants may also be a flat list, which fills round 1.
type Plan struct {
	Event        *Event `yaml:"event"`
	Participants any    `yaml:"participants"`
	Meetings     int    `yaml:"meetings"`
}

// Event is the optional event info of a plan.
type Event struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Date        string `yaml:"date" json:"date"`
}

// Stats holds the outcome of a seeding run.
type Stats struct {
	Participants int
	Created      int
	Rejected     int
	Attempts     int
	StartTime    time.Time
	Duration     time.Duration
}

// LoadPlan reads and checks a seed file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a seed plan from YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	switch p.Participants.(type) {
	case []any, map[string]any:
	case nil:
		return nil, fmt.Errorf("%w: participants are required", ErrInvalidPlan)
	default:
		return nil, fmt.Errorf("%w: participants must be a list or a round map", ErrInvalidPlan)
	}
	if p.Meetings < 0 {
		return nil, fmt.Errorf("%w: meetings must not be negative", ErrInvalidPlan)
	}
	return &p, nil
}
