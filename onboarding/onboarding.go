// Package onboarding screens workers before they join live conversations.
// The flow presents sample utterances with known annotation answers and
// grades the worker's responses. It runs on the same participant contract as
// live conversations but is a separate state machine, composed next to the
// turn engine rather than built into it.
package onboarding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crowdchat/parley/participant"
	"github.com/crowdchat/parley/qualification"
	"github.com/crowdchat/parley/types"
)

// onboardingSetterID identifies instruction and sample deliveries.
const onboardingSetterID = "onboarding-agent"

// Sample is one screening utterance with its expected annotation. The worker
// passes the sample when every expected bucket matches their answer.
type Sample struct {
	// Text is the utterance the worker annotates.
	Text string `yaml:"text" json:"text"`

	// Expected holds the correct per-bucket answers.
	Expected types.ProblemData `yaml:"expected" json:"expected"`
}

// Config controls the screening flow.
type Config struct {
	// Samples are presented in order; all of them are graded per attempt.
	Samples []Sample

	// PassThreshold is the minimum number of correctly annotated samples.
	PassThreshold int

	// MaxAttempts bounds how many times a worker may retry the full set.
	MaxAttempts int

	// ResponseTimeout bounds each wait for an answer.
	ResponseTimeout time.Duration

	// BlockQualification names the qualification granted on final failure.
	BlockQualification string
}

// DefaultConfig returns the standard screening settings with no samples.
// Callers supply the sample set for their deployment.
func DefaultConfig() Config {
	return Config{
		PassThreshold:      1,
		MaxAttempts:        2,
		ResponseTimeout:    5 * time.Minute,
		BlockQualification: "onboarding_failed",
	}
}

// Result describes one completed screening.
type Result struct {
	Passed   bool
	Attempts int
	// Correct is the per-attempt count of correctly annotated samples.
	Correct []int
}

// Flow runs the screening conversation with one worker.
type Flow struct {
	cfg     Config
	granter qualification.Granter
	logger  *zap.Logger
}

// NewFlow validates the config and builds a screening flow.
func NewFlow(cfg Config, granter qualification.Granter, logger *zap.Logger) (*Flow, error) {
	if len(cfg.Samples) == 0 {
		return nil, types.NewError(types.ErrConfiguration, "onboarding needs at least one sample")
	}
	if cfg.PassThreshold <= 0 || cfg.PassThreshold > len(cfg.Samples) {
		return nil, types.NewErrorf(types.ErrConfiguration,
			"pass threshold %d out of range for %d samples", cfg.PassThreshold, len(cfg.Samples))
	}
	if cfg.MaxAttempts <= 0 {
		return nil, types.NewError(types.ErrConfiguration, "max attempts must be positive")
	}
	if cfg.ResponseTimeout <= 0 {
		return nil, types.NewError(types.ErrConfiguration, "response timeout must be positive")
	}
	if granter == nil {
		return nil, types.NewError(types.ErrConfiguration, "onboarding needs a qualification granter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		cfg:     cfg,
		granter: granter,
		logger:  logger.With(zap.String("component", "onboarding")),
	}, nil
}

// Run screens one worker. It returns the screening result; a failed screening
// is not an error. Participant failures (timeouts, closed connections) abort
// the flow and surface as errors without granting the block.
func (f *Flow) Run(ctx context.Context, worker participant.Participant) (Result, error) {
	logger := f.logger.With(zap.String("worker_id", worker.ID()))
	var res Result

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		correct, err := f.runAttempt(ctx, worker)
		if err != nil {
			return res, fmt.Errorf("onboarding attempt %d: %w", attempt, err)
		}
		res.Correct = append(res.Correct, correct)

		if correct >= f.cfg.PassThreshold {
			res.Passed = true
			logger.Info("onboarding passed",
				zap.Int("attempt", attempt),
				zap.Int("correct", correct),
			)
			return res, nil
		}
		logger.Info("onboarding attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("correct", correct),
			zap.Int("threshold", f.cfg.PassThreshold),
		)
	}

	logger.Warn("onboarding failed, blocking worker")
	if err := f.granter.GrantPunitive(ctx, worker.ID(), f.cfg.BlockQualification); err != nil {
		return res, fmt.Errorf("grant block qualification: %w", err)
	}
	return res, nil
}

// runAttempt presents every sample and grades the answers. Deliveries do not
// count as conversation turns.
func (f *Flow) runAttempt(ctx context.Context, worker participant.Participant) (int, error) {
	correct := 0
	for i, sample := range f.cfg.Samples {
		prompt := types.Message{
			ID:   onboardingSetterID,
			Text: sample.Text,
		}
		if err := worker.Observe(ctx, prompt, participant.WithoutTurnIncrement()); err != nil {
			return correct, fmt.Errorf("deliver sample %d: %w", i, err)
		}

		answer, err := worker.Act(ctx, f.cfg.ResponseTimeout)
		if err != nil {
			return correct, fmt.Errorf("collect answer %d: %w", i, err)
		}
		if grade(sample.Expected, answer.ProblemData()) {
			correct++
		}
	}
	return correct, nil
}

// grade compares an answer against the expected buckets. Every expected
// bucket must be present with the matching value; extra buckets in the answer
// are ignored so a UI offering more checkboxes than the sample exercises does
// not fail honest workers.
func grade(expected, answer types.ProblemData) bool {
	if len(expected) == 0 {
		return len(answer) == 0
	}
	for bucket, want := range expected {
		got, ok := answer[bucket]
		if !ok || got != want {
			return false
		}
	}
	return true
}
