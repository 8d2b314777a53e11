package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dcreum/dcrflow/internal/config"
	internaldomain "github.com/dcreum/dcrflow/internal/domain"
	"github.com/dcreum/dcrflow/internal/engine"
	"github.com/dcreum/dcrflow/internal/util"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/editor"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

// WorkflowsController holds dependencies for workflow HTTP endpoints.
type WorkflowsController struct {
	AuthController
	Registry     *engine.MirrorRegistry
	BookmarkRepo engine.BookmarkRepo
}

func NewWorkflowsController(registry *engine.MirrorRegistry, bookmarkRepo engine.BookmarkRepo, userRepo engine.UserRepo) *WorkflowsController {
	return &WorkflowsController{Registry: registry, BookmarkRepo: bookmarkRepo, AuthController: AuthController{
		UserRepo: userRepo,
	}}
}

func (c *WorkflowsController) workflowID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (c *WorkflowsController) handleGetWorkflowById(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}

	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	snap := mirror.Snapshot()
	if snap == nil {
		http.Error(w, "workflow not synced yet", http.StatusServiceUnavailable)
		return
	}

	if err := c.BookmarkRepo.TouchRecent(id, snap.Name); err != nil {
		slog.Warn("Failed to record recent workflow", "workflow_id", id, "error", err)
	}

	apiResult := mapSnapshotToApi(snap, mirror)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResult)
}

func (c *WorkflowsController) handleReleaseWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	c.Registry.Release(id)
	w.WriteHeader(http.StatusNoContent)
}

func (c *WorkflowsController) handleSyncWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	if err := mirror.Sync(r.Context()); err != nil {
		slog.Error("Sync failed", "workflow_id", id, "error", err)
		http.Error(w, "sync failed", http.StatusBadGateway)
		return
	}
	snap := mirror.Snapshot()
	if snap == nil {
		// Sync on a mirror released mid-request returns without publishing.
		http.Error(w, "workflow not synced yet", http.StatusServiceUnavailable)
		return
	}
	apiResult := mapSnapshotToApi(snap, mirror)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResult)
}

func (c *WorkflowsController) handleGetWorkflowEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mirror.Events())
}

func (c *WorkflowsController) handleGetPendingExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.PendingResponse{Pending: mirror.Pending().Entries()})
}

func (c *WorkflowsController) handleExecuteActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}

	req, err := util.DecodeJSONBody[models.ExecuteRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	if snap := mirror.Snapshot(); snap != nil && snap.Activity(req.ActivityID) == nil {
		http.Error(w, "unknown activity", http.StatusBadRequest)
		return
	}

	tx, err := mirror.ExecuteActivity(r.Context(), req.ActivityID)
	if err != nil {
		slog.Error("Failed to execute activity", "workflow_id", id, "activity_id", req.ActivityID, "error", err)
		http.Error(w, "execution rejected", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.ExecuteResponse{TxHash: tx})
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	draft, err := draftFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := c.Registry.Create(r.Context(), draft)
	if err != nil {
		slog.Error("Failed to create workflow", "name", req.Name, "error", err)
		http.Error(w, "failed to create workflow", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.CreateWorkflowResponse{TxHash: tx})
}

func draftFromRequest(req models.CreateWorkflowRequest) (*editor.Draft, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	if len(req.Activities) == 0 {
		return nil, errors.New("at least one activity is required")
	}

	draft := editor.NewDraft(req.Name)
	ids := make([]uint32, len(req.Activities))
	for i, a := range req.Activities {
		if a.Name == "" {
			return nil, errors.New("activity name is required")
		}
		id := draft.AddActivity(a.Name, nil)
		ids[i] = id
		if a.Included {
			draft.SetIncluded(id, true)
		}
		if a.Executed {
			draft.SetExecuted(id, true)
		}
		if a.Pending {
			draft.SetPending(id, true)
		}
		for _, addr := range a.Whitelist {
			if err := draft.AddWhitelist(id, addr); err != nil {
				return nil, err
			}
		}
	}
	for _, rel := range req.Relations {
		typ, err := domain.ParseRelationType(rel.Type)
		if err != nil {
			return nil, err
		}
		if int(rel.From) >= len(ids) || int(rel.To) >= len(ids) {
			return nil, errors.New("relation references unknown activity")
		}
		if err := draft.AddRelation(ids[rel.From], ids[rel.To], typ); err != nil {
			return nil, err
		}
	}
	return draft, nil
}

func (c *WorkflowsController) handleListRecent(w http.ResponseWriter, r *http.Request) {
	limit := config.GetSystemSettingInteger(config.RECENT_WORKFLOWS_LIMIT)
	bookmarks, err := c.BookmarkRepo.ListRecent(limit)
	if err != nil {
		slog.Error("Failed to list recent workflows", "error", err)
		http.Error(w, "failed to list recent workflows", http.StatusInternalServerError)
		return
	}
	writeBookmarks(w, bookmarks)
}

func (c *WorkflowsController) handleListRelevant(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := c.BookmarkRepo.ListRelevant()
	if err != nil {
		slog.Error("Failed to list relevant workflows", "error", err)
		http.Error(w, "failed to list relevant workflows", http.StatusInternalServerError)
		return
	}
	writeBookmarks(w, bookmarks)
}

func (c *WorkflowsController) handleMarkRelevant(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	mirror, err := c.Registry.Acquire(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mirror workflow", "workflow_id", id, "error", err)
		http.Error(w, "workflow not available", http.StatusBadGateway)
		return
	}
	name := ""
	if snap := mirror.Snapshot(); snap != nil {
		name = snap.Name
	}
	if err := c.BookmarkRepo.MarkRelevant(id, name); err != nil {
		slog.Error("Failed to mark workflow relevant", "workflow_id", id, "error", err)
		http.Error(w, "failed to mark workflow relevant", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *WorkflowsController) handleUnmarkRelevant(w http.ResponseWriter, r *http.Request) {
	id, ok := c.workflowID(w, r)
	if !ok {
		return
	}
	if err := c.BookmarkRepo.UnmarkRelevant(id); err != nil {
		slog.Error("Failed to unmark workflow", "workflow_id", id, "error", err)
		http.Error(w, "failed to unmark workflow", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeBookmarks(w http.ResponseWriter, bookmarks []*internaldomain.Bookmark) {
	out := make([]models.BookmarkResponse, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, models.BookmarkResponse{WorkflowID: b.WorkflowID, Name: b.Name})
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func mapSnapshotToApi(snap *domain.Snapshot, mirror *engine.WorkflowMirror) models.SnapshotResponse {
	pendingTx := make(map[uint32]bool)
	for _, actID := range mirror.Pending().Activities() {
		pendingTx[actID] = true
	}

	activities := make([]models.ActivityResponse, 0, len(snap.Activities))
	for _, a := range snap.Activities {
		activities = append(activities, models.ActivityResponse{
			ID:               a.ID,
			Name:             a.Name,
			Included:         a.Included,
			Executed:         a.Executed,
			Pending:          a.Pending,
			CanExecute:       a.CanExecute,
			AuthDisabled:     a.AuthDisabled(),
			Whitelist:        a.Whitelist,
			PendingExecution: pendingTx[a.ID],
		})
	}
	return models.SnapshotResponse{
		WorkflowID: snap.WorkflowID,
		Name:       snap.Name,
		HasSynced:  mirror.HasSynced(),
		Creator:    snap.Creation.Creator,
		Block:      snap.Creation.BlockNumber,
		TxHash:     snap.Creation.TxHash,
		SyncedAt:   snap.SyncedAt,
		Activities: activities,
		Relations:  snap.Relations,
	}
}
