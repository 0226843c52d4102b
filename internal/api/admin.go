package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
)

// ListRules returns the rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := []*domain.RuleConfig{}
	if h.engine != nil {
		loaded = h.engine.GetLoadedRules()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a loaded rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if h.engine != nil {
		for _, rule := range h.engine.GetLoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule validates a rule and saves it. Stored rules take effect after
// POST /rules/reload; without a repository the rule is loaded right away.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	version := req.Version
	if version == "" {
		version = "1.0.0"
	}

	rule := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     version,
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo == nil {
		if rule.Enabled {
			if err := h.engine.LoadRule(rule); err != nil {
				writeError(w, err)
				return
			}
		}
		slog.Info("rule loaded", "id", rule.ID, "name", rule.Name)
		writeJSON(w, http.StatusCreated, map[string]any{
			"rule":    rule,
			"message": "Rule loaded.",
		})
		return
	}

	if err := h.repo.SaveRuleConfig(ctx, rule); err != nil {
		slog.Error("failed to save rule config", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules replaces the engine's rules with the stored ones.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	stored, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(stored); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", h.engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

// ReloadReference rebuilds the lookup tables from the repository and swaps
// them in. In-flight computations finish on the previous tables.
func (h *Handler) ReloadReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	data, err := h.repo.LoadReference(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	ref, err := levy.NewReference(data)
	if err != nil {
		slog.Error("stored reference data rejected", "error", err)
		writeError(w, err)
		return
	}
	h.levy.Swap(ref)

	slog.Info("reference data reloaded",
		"municipalities", ref.Municipalities.Len(),
		"activities", ref.Activities.Len(),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "reference data reloaded",
		"municipalities": ref.Municipalities.Len(),
		"activities":     ref.Activities.Len(),
		"classes":        ref.Schedule.Classes(),
	})
}
