package storage

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/contractflow/internal/models"
)

// ErrIncompleteRun is returned when a run state lacks a stage result needed for persistence.
var ErrIncompleteRun = errors.New("run state is missing stage results")

// SuccessRecords is everything one successful run writes.
type SuccessRecords struct {
	Contract models.ProcessedContract
	Review   *models.ReviewItem
	Logs     []models.ProcessingLog
}

// BuildSuccessRecords derives the rows for a completed run. Backends call it
// so both store the same shape.
func BuildSuccessRecords(state *models.RunState, now time.Time) (SuccessRecords, error) {
	if state == nil || state.Contract == nil || state.Validation == nil || state.Routing == nil {
		return SuccessRecords{}, ErrIncompleteRun
	}

	contractID := uuid.NewString()
	route := state.Routing.Route
	contract := models.ProcessedContract{
		ID:               contractID,
		Sender:           state.Sender,
		Subject:          state.Subject,
		SourceFile:       state.FilePath,
		Status:           models.ContractStatusFor(route),
		Route:            route,
		ExtractedData:    *state.Contract,
		ValidationResult: *state.Validation,
		RoutingDecision:  *state.Routing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var review *models.ReviewItem
	if route == models.RouteReviewQueue {
		review = &models.ReviewItem{
			ID:         uuid.NewString(),
			ContractID: contractID,
			Reason:     models.ReviewReason(state.Routing.Reasons),
			Status:     models.ReviewPending,
			CreatedAt:  now,
		}
	}

	extract := state.Metrics[models.StageExtract]
	validate := state.Metrics[models.StageValidate]
	logs := []models.ProcessingLog{
		{
			Stage:   models.StageExtract,
			Message: "contract fields extracted",
			Payload: map[string]any{
				"latency_ms":  extract.LatencyMS,
				"token_usage": usagePayload(extract.Usage),
			},
		},
		{
			Stage:   models.StageValidate,
			Message: "contract validated against policies",
			Payload: map[string]any{
				"latency_ms":  validate.LatencyMS,
				"token_usage": usagePayload(validate.Usage),
				"result":      state.Validation,
			},
		},
		{
			Stage:   models.StageRoute,
			Message: "contract routed",
			Payload: map[string]any{
				"route":   route,
				"reasons": state.Routing.Reasons,
			},
		},
	}
	for i := range logs {
		logs[i].ID = uuid.NewString()
		logs[i].ContractID = &contractID
		logs[i].CreatedAt = now
	}

	return SuccessRecords{Contract: contract, Review: review, Logs: logs}, nil
}

// BuildFailureLog derives the log row for a failed run.
func BuildFailureLog(sender, subject, filePath, errMsg string, now time.Time) models.ProcessingLog {
	return models.ProcessingLog{
		ID:      uuid.NewString(),
		Stage:   models.LogStagePipelineError,
		Message: errMsg,
		Payload: map[string]any{
			"sender":    sender,
			"subject":   subject,
			"file_path": filePath,
			"error":     errMsg,
		},
		CreatedAt: now,
	}
}

func usagePayload(u models.Usage) map[string]any {
	p := map[string]any{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
		"total_tokens":  u.TotalTokens,
	}
	if u.Mode != "" {
		p["mode"] = u.Mode
	}
	return p
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// either is empty, zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk models.PolicyChunk
	Score float64
}

// TopK ranks chunks by cosine similarity and returns the best k as retrieved policies.
func TopK(query []float32, chunks []models.PolicyChunk, k int) []models.RetrievedPolicy {
	if k <= 0 || len(chunks) == 0 {
		return []models.RetrievedPolicy{}
	}
	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, ScoredChunk{Chunk: c, Score: CosineSimilarity(query, c.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]models.RetrievedPolicy, 0, len(scored))
	for _, s := range scored {
		out = append(out, models.RetrievedPolicy{Source: s.Chunk.Source, Content: s.Chunk.Content})
	}
	return out
}
