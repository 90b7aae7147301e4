package service

import (
	"context"
	"fmt"
	"time"

	"github.com/qawatch/qawatch-backend/internal/models"
	"github.com/qawatch/qawatch-backend/internal/pipeline"
	"github.com/qawatch/qawatch-backend/internal/pkg/validate"
	"github.com/qawatch/qawatch-backend/internal/repository"
)

// ExecutionService ingests completed workflow executions. ReportExecution is
// the fire-and-forget path behind POST /executions; CheckExecution runs
// detection inline for callers that want the verdict in the response;
// CheckExecutionByID re-runs detection for an already-recorded execution.
type ExecutionService interface {
	ReportExecution(ctx context.Context, exec *models.Execution) (queued bool, err error)
	CheckExecution(ctx context.Context, exec *models.Execution) (*pipeline.Result, error)
	CheckExecutionByID(ctx context.Context, id string) (*pipeline.Result, error)
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
}

type executionService struct {
	executions repository.ExecutionStore
	pipeline   *pipeline.Pipeline
}

// NewExecutionService creates the execution ingest service.
func NewExecutionService(executions repository.ExecutionStore, p *pipeline.Pipeline) ExecutionService {
	return &executionService{executions: executions, pipeline: p}
}

func validateExecution(exec *models.Execution) error {
	if !validate.TemplateID(exec.TemplateID) {
		return fmt.Errorf("%w: template_id must be 1-%d alphanumeric, hyphen, or underscore characters",
			ErrInvalidQuery, validate.TemplateIDMaxLen)
	}
	if exec.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration_seconds must not be negative", ErrInvalidQuery)
	}
	if exec.CompletedAt.IsZero() {
		exec.CompletedAt = time.Now().UTC()
	}
	return nil
}

func (s *executionService) ReportExecution(ctx context.Context, exec *models.Execution) (bool, error) {
	if err := validateExecution(exec); err != nil {
		return false, err
	}
	if err := s.executions.RecordExecution(ctx, exec); err != nil {
		return false, err
	}
	return s.pipeline.Enqueue(exec), nil
}

func (s *executionService) CheckExecution(ctx context.Context, exec *models.Execution) (*pipeline.Result, error) {
	if err := validateExecution(exec); err != nil {
		return nil, err
	}
	if err := s.executions.RecordExecution(ctx, exec); err != nil {
		return nil, err
	}
	return s.pipeline.Run(ctx, exec)
}

func (s *executionService) CheckExecutionByID(ctx context.Context, id string) (*pipeline.Result, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: execution_id is required", ErrInvalidQuery)
	}
	exec, err := s.executions.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Run(ctx, exec)
}

func (s *executionService) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidQuery)
	}
	return s.executions.GetExecution(ctx, id)
}
