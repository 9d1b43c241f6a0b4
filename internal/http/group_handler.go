package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const groupsBasePath = "/bluetrace/api/v1/groups"

// GroupHandler 设备分组 Handler
type GroupHandler struct {
	groups repository.GroupsRepository
	logger *zap.Logger
}

// NewGroupHandler 创建分组 Handler
func NewGroupHandler(groups repository.GroupsRepository, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *GroupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == groupsBasePath {
		switch r.Method {
		case http.MethodGet:
			h.ListGroups(w, r)
		case http.MethodPost:
			h.CreateGroup(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	groupID := strings.TrimPrefix(r.URL.Path, groupsBasePath+"/")
	if groupID == "" || strings.Contains(groupID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.UpdateGroup(w, r, groupID)
	case http.MethodDelete:
		h.DeleteGroup(w, r, groupID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListGroups 查询分组列表
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("ListGroups failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": groups,
		"total": len(groups),
	}))
}

// CreateGroup 创建分组
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusOK, Fail("name is required"))
		return
	}

	group := &models.DeviceGroup{
		GroupID: uuid.New().String(),
		Name:    body.Name,
		Color:   body.Color,
		Icon:    body.Icon,
	}
	if err := h.groups.CreateGroup(r.Context(), group); err != nil {
		h.logger.Error("CreateGroup failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(group))
}

// UpdateGroup 更新分组
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	group := &models.DeviceGroup{
		GroupID: groupID,
		Name:    body.Name,
		Color:   body.Color,
		Icon:    body.Icon,
	}
	if err := h.groups.UpdateGroup(r.Context(), group); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, Fail("group not found"))
			return
		}
		h.logger.Error("UpdateGroup failed", zap.String("group_id", groupID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(group))
}

// DeleteGroup 删除分组（组内设备保留，group_id 置空）
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	if err := h.groups.DeleteGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, Fail("group not found"))
			return
		}
		h.logger.Error("DeleteGroup failed", zap.String("group_id", groupID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"group_id": groupID}))
}
