package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/campushq/pulse/pkg/models"
)

// ExecutionLog appends details to one JSON file per run under <root>/runs.
// A mutex serializes appends because a run's nodes may log from the worker
// pool.
type ExecutionLog struct {
	root string
	mu   sync.Mutex
}

func NewExecutionLog(root string) *ExecutionLog {
	return &ExecutionLog{root: root}
}

func (l *ExecutionLog) runPath(runID string) string {
	return path.Join(l.root, "runs", runID+".json")
}

func (l *ExecutionLog) Append(_ context.Context, runID string, detail *models.NodeExecutionDetail) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(path.Join(l.root, "runs"), dirPerm); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	details, err := l.read(runID)
	if err != nil {
		return err
	}

	details = append(details, detail)

	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution details for run %s: %w", runID, err)
	}

	err = os.WriteFile(l.runPath(runID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write execution details for run %s: %w", runID, err)
	}

	return nil
}

func (l *ExecutionLog) DetailsByRun(_ context.Context, runID string) ([]*models.NodeExecutionDetail, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.read(runID)
}

func (l *ExecutionLog) read(runID string) ([]*models.NodeExecutionDetail, error) {
	data, err := os.ReadFile(l.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.NodeExecutionDetail{}, nil
		}

		return nil, fmt.Errorf("failed to read execution details for run %s: %w", runID, err)
	}

	var details []*models.NodeExecutionDetail

	err = json.Unmarshal(data, &details)
	if err != nil {
		return nil, fmt.Errorf("failed to decode execution details for run %s: %w", runID, err)
	}

	return details, nil
}
