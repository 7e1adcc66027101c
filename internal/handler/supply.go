package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/supplylist/internal/backup"
	"github.com/dukerupert/supplylist/internal/supply"
)

// maxImportBytes caps uploaded export documents.
const maxImportBytes = 10 << 20

type SupplyHandler struct {
	ctrl     *supply.Controller
	uploader *backup.Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewSupplyHandler returns handlers over ctrl. uploader may be nil when
// off-device backup is not configured.
func NewSupplyHandler(ctrl *supply.Controller, uploader *backup.Uploader, logger *slog.Logger) *SupplyHandler {
	return &SupplyHandler{ctrl: ctrl, uploader: uploader, logger: logger, now: time.Now}
}

type itemRequest struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Notes      string `json:"notes"`
}

type categoryRequest struct {
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	SortOrder json.RawMessage `json:"sortOrder"`
}

type backupRequest struct {
	Key        string `json:"key"`
	Passphrase string `json:"passphrase"`
}

func (h *SupplyHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.ShoppingList())
}

func (h *SupplyHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.AllItems(r.URL.Query().Get("q")))
}

func (h *SupplyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Categories())
}

func (h *SupplyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Summary())
}

func (h *SupplyHandler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.ctrl.SuggestCategory(r.URL.Query().Get("name"))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"found": false, "category": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "category": cat})
}

func (h *SupplyHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	item, err := h.ctrl.AddItem(req.CategoryID, req.Name, req.Notes)
	h.writeResult(w, http.StatusCreated, "item", item, err)
}

func (h *SupplyHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	item, err := h.ctrl.UpdateItem(r.PathValue("id"), req.Name, req.Notes, req.CategoryID)
	h.writeResult(w, http.StatusOK, "item", item, err)
}

func (h *SupplyHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	err := h.ctrl.DeleteItem(r.PathValue("id"))
	h.writeResult(w, http.StatusOK, "deleted", r.PathValue("id"), err)
}

func (h *SupplyHandler) ToggleOnList(w http.ResponseWriter, r *http.Request) {
	item, err := h.ctrl.ToggleOnShoppingList(r.PathValue("id"))
	h.writeResult(w, http.StatusOK, "item", item, err)
}

func (h *SupplyHandler) ToggleChecked(w http.ResponseWriter, r *http.Request) {
	item, err := h.ctrl.ToggleChecked(r.PathValue("id"))
	h.writeResult(w, http.StatusOK, "item", item, err)
}

func (h *SupplyHandler) RemoveFromList(w http.ResponseWriter, r *http.Request) {
	item, err := h.ctrl.RemoveFromShoppingList(r.PathValue("id"))
	h.writeResult(w, http.StatusOK, "item", item, err)
}

func (h *SupplyHandler) ClearList(w http.ResponseWriter, r *http.Request) {
	n, err := h.ctrl.ClearShoppingList()
	h.writeResult(w, http.StatusOK, "cleared", n, err)
}

func (h *SupplyHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	cat, err := h.ctrl.AddCategory(req.Name, req.Color, sortOrderField(req.SortOrder))
	h.writeResult(w, http.StatusCreated, "category", cat, err)
}

func (h *SupplyHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	cat, err := h.ctrl.UpdateCategory(r.PathValue("id"), req.Name, req.Color, sortOrderField(req.SortOrder))
	h.writeResult(w, http.StatusOK, "category", cat, err)
}

func (h *SupplyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	n, err := h.ctrl.DeleteCategory(r.PathValue("id"))
	h.writeResult(w, http.StatusOK, "deletedItems", n, err)
}

// Export downloads the aggregate as an indented JSON attachment.
func (h *SupplyHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := backup.Export(h.ctrl.Snapshot())
	if err != nil {
		h.logger.Error("export", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to export"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.ExportFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import replaces the aggregate with the request body.
func (h *SupplyHandler) Import(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "import too large"})
		return
	}
	err = h.ctrl.Import(raw)
	h.writeResult(w, http.StatusOK, "summary", h.ctrl.Summary(), err)
}

func (h *SupplyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	err := h.ctrl.ResetAll()
	h.writeResult(w, http.StatusOK, "summary", h.ctrl.Summary(), err)
}

func (h *SupplyHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeJSON(w, http.StatusOK, backup.Status{State: backup.StateDisabled})
		return
	}
	writeJSON(w, http.StatusOK, h.uploader.Status())
}

func (h *SupplyHandler) BackupHistory(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	history, err := h.uploader.History(50)
	if err != nil {
		h.logger.Error("backup history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Backup uploads an encrypted export to the configured bucket.
func (h *SupplyHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !h.backupEnabled(w) {
		return
	}
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase is required"})
		return
	}

	key, err := h.uploader.Upload(r.Context(), h.ctrl.Snapshot(), req.Passphrase)
	if err != nil {
		h.logger.Error("backup upload", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// RestoreBackup fetches an encrypted export and imports it.
func (h *SupplyHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if !h.backupEnabled(w) {
		return
	}
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Key == "" || req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key and passphrase are required"})
		return
	}

	raw, err := h.uploader.Fetch(r.Context(), req.Key, req.Passphrase)
	switch {
	case errors.Is(err, backup.ErrInvalidKey):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, backup.ErrDecrypt):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "wrong passphrase or corrupt backup"})
		return
	case err != nil:
		h.logger.Error("backup fetch", "key", req.Key, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch backup"})
		return
	}

	err = h.ctrl.Import(raw)
	h.writeResult(w, http.StatusOK, "summary", h.ctrl.Summary(), err)
}

func (h *SupplyHandler) backupEnabled(w http.ResponseWriter) bool {
	if h.uploader == nil || !h.uploader.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backup not configured"})
		return false
	}
	return true
}

// writeResult reports a mutation outcome. A storage failure still answers
// with the result because the change is applied in memory.
func (h *SupplyHandler) writeResult(w http.ResponseWriter, status int, field string, v any, err error) {
	switch {
	case err == nil:
		writeJSON(w, status, map[string]any{field: v, "persisted": true})
	case errors.Is(err, supply.ErrStorage):
		writeJSON(w, status, map[string]any{
			field:       v,
			"persisted": false,
			"warning":   "change applied but could not be saved",
		})
	case errors.Is(err, supply.ErrInvalidArgument), errors.Is(err, supply.ErrInvalidFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, supply.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("unexpected mutation error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// sortOrderField accepts a sort order sent either as a JSON number or as the
// raw text of a form field.
func sortOrderField(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return supply.ParseSortOrder(s)
	}
	if bytes.Equal(raw, []byte("null")) {
		return supply.ParseSortOrder("")
	}
	return supply.ParseSortOrder(strings.TrimSpace(string(raw)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
