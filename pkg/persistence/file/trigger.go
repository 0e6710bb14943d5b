package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/persistence"
)

const dirPerm = 0o755

// TriggerRepository stores one JSON file per trigger under <root>/triggers.
type TriggerRepository struct {
	root string
}

func NewTriggerRepository(root string) *TriggerRepository {
	return &TriggerRepository{root: root}
}

func (r *TriggerRepository) triggersDir() string {
	return path.Join(r.root, "triggers")
}

func (r *TriggerRepository) triggerPath(id string) string {
	return path.Join(r.triggersDir(), id+".json")
}

func (r *TriggerRepository) Triggers(ctx context.Context) ([]*models.Trigger, error) {
	dir := os.DirFS(r.triggersDir())

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger files: %w", err)
	}

	triggers := make([]*models.Trigger, 0, len(files))

	for _, file := range files {
		trigger, err := r.TriggerByID(ctx, file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		triggers = append(triggers, trigger)
	}

	return triggers, nil
}

func (r *TriggerRepository) TriggerByID(_ context.Context, id string) (*models.Trigger, error) {
	data, err := os.ReadFile(r.triggerPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTriggerNotFound
		}

		return nil, fmt.Errorf("failed to read trigger %s: %w", id, err)
	}

	var trigger models.Trigger

	err = json.Unmarshal(data, &trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trigger %s: %w", id, err)
	}

	return &trigger, nil
}

func (r *TriggerRepository) TriggersByEvent(ctx context.Context, eventName string) ([]*models.Trigger, error) {
	all, err := r.Triggers(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Trigger, 0)

	for _, trigger := range all {
		if trigger.Enabled && trigger.EventName == eventName {
			matched = append(matched, trigger)
		}
	}

	return matched, nil
}

func (r *TriggerRepository) SaveTrigger(_ context.Context, trigger *models.Trigger) error {
	if err := os.MkdirAll(r.triggersDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create triggers directory: %w", err)
	}

	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	data, err := json.MarshalIndent(trigger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trigger %s: %w", trigger.ID, err)
	}

	err = os.WriteFile(r.triggerPath(trigger.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write trigger %s: %w", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) DeleteTrigger(_ context.Context, id string) error {
	err := os.Remove(r.triggerPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrTriggerNotFound
		}

		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}

	return nil
}
