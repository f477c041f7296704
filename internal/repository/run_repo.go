package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dogspots-bxl/data-importer/pkg/model"
	"google.golang.org/api/iterator"
)

const runCollection = "pipeline_runs"

// RunRepository manages pipeline run lifecycle records.
type RunRepository struct {
	client *firestore.Client
}

func NewRunRepository(client *firestore.Client) *RunRepository {
	return &RunRepository{client: client}
}

func (r *RunRepository) CreateRun(ctx context.Context, run model.PipelineRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection(runCollection).Doc(run.RunID)
	if _, err := ref.Set(ctx, run); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run model.PipelineRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection(runCollection).Doc(run.RunID)
	if _, err := ref.Set(ctx, run); err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	iter := r.client.Collection(runCollection).
		OrderBy("startedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	var runs []model.PipelineRun
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate runs: %w", err)
		}
		var run model.PipelineRun
		if err := doc.DataTo(&run); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", doc.Ref.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
