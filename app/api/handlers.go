package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c3toronto/groups-sync/app/database"
	"github.com/c3toronto/groups-sync/app/ingest"
)

func NewHandler(coordinator CoordinatorInterface, store SnapshotReaderInterface,
	runRepo database.RunRepository) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       store,
		runRepo:     runRepo,
	}
}

// GetGroups serves the published snapshot. Consumers poll this, so it is
// served with no-cache headers to keep webhook-triggered updates visible
// immediately.
func (h *Handler) GetGroups(c *gin.Context) {
	if !h.store.Exists() {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "No group data available",
			"message": "Run initialization to generate the group list",
		})
		return
	}

	snap, err := h.store.Load()
	if err != nil {
		slog.Error("Failed to load snapshot", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load group data"})
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("X-Total-Groups", strconv.Itoa(snap.Metadata.TotalGroups))
	c.Header("X-Last-Updated", snap.Metadata.LastUpdated.Format(time.RFC3339))

	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"state":     h.coordinator.State(),
		"snapshot":  h.store.Exists(),
	}

	if snap, err := h.store.Load(); err == nil {
		health["total_groups"] = snap.Metadata.TotalGroups
		health["last_updated"] = snap.Metadata.LastUpdated.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"state": h.coordinator.State(),
	}

	if result, lastErr := h.coordinator.LastOutcome(); result != nil {
		stats["last_run"] = result
	} else if lastErr != nil {
		stats["last_error"] = lastErr.Error()
	}

	if h.runRepo != nil {
		if succeeded, failed, err := h.runRepo.GetRunCounts(); err == nil {
			stats["runs"] = map[string]int{
				"succeeded": succeeded,
				"failed":    failed,
			}
		}
		if last, err := h.runRepo.GetLastSuccessfulRun(); err == nil && last != nil {
			stats["last_successful_run"] = map[string]interface{}{
				"id":            last.ID,
				"trigger":       last.TriggerSource,
				"public_groups": last.PublicGroups,
				"started_at":    last.StartedAt.Format(time.RFC3339),
			}
		}
		if recent, err := h.runRepo.GetRecentRuns(10); err == nil {
			stats["recent_runs"] = recentRunSummaries(recent)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// webhookPayload is the slice of the Planning Center event envelope we
// care about for logging.
type webhookPayload struct {
	Data []struct {
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

// PostWebhook regenerates the group list when Planning Center reports a
// change. The run also dumps the raw upstream payload for inspection.
func (h *Handler) PostWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err == nil && len(payload.Data) > 0 {
		slog.Info("Webhook received", "event", payload.Data[0].Attributes.Name)
	} else {
		slog.Info("Webhook received")
	}

	result, err := h.coordinator.Run(c.Request.Context(), ingest.TriggerWebhook)
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Group data regenerated",
		"result":  result,
	})
}

func (h *Handler) APIGenerate(c *gin.Context) {
	result, err := h.coordinator.Run(c.Request.Context(), ingest.TriggerManual)
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Group data regenerated",
		"result":  result,
	})
}

// APIInitialize publishes a first snapshot when none exists yet; it is a
// no-op on an already initialized deployment.
func (h *Handler) APIInitialize(c *gin.Context) {
	result, err := h.coordinator.Bootstrap(c.Request.Context())
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	message := "Group data initialized"
	if result.SkippedExisting {
		message = "Group data already initialized"
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"result":  result,
	})
}

func (h *Handler) renderRunError(c *gin.Context, err error) {
	category := ingest.Categorize(err)

	status := http.StatusInternalServerError
	switch category {
	case ingest.CategoryUpstream, ingest.CategoryTransport:
		status = http.StatusBadGateway
	case ingest.CategoryCanceled:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":    "Ingestion failed",
		"category": category,
		"details":  err.Error(),
	})
}

func recentRunSummaries(runs []database.Run) []map[string]interface{} {
	summaries := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		summary := map[string]interface{}{
			"id":             run.ID,
			"trigger":        run.TriggerSource,
			"status":         run.Status,
			"raw_groups":     run.RawGroups,
			"public_groups":  run.PublicGroups,
			"skipped_groups": run.SkippedGroups,
			"pages":          run.Pages,
			"started_at":     run.StartedAt.Format(time.RFC3339),
		}
		if run.Error != "" {
			summary["error"] = run.Error
		}
		if run.FinishedAt != nil {
			summary["finished_at"] = run.FinishedAt.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
