package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wisefido-bluetrace/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// OUIHandler 本地厂商前缀表维护 Handler
// 前缀表通过 xlsx 批量导入，作为远程查询之前的本地数据源
type OUIHandler struct {
	ouiRepo repository.OUIRepository
	logger  *zap.Logger
}

// NewOUIHandler 创建 OUI Handler
func NewOUIHandler(ouiRepo repository.OUIRepository, logger *zap.Logger) *OUIHandler {
	return &OUIHandler{ouiRepo: ouiRepo, logger: logger}
}

// GetImportTemplate 获取导入模板
func (h *OUIHandler) GetImportTemplate(w http.ResponseWriter, r *http.Request) {
	excelData, err := GenerateOUIImportTemplate()
	if err != nil {
		h.logger.Error("GenerateOUIImportTemplate failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate template: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=oui-import-template.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

// ExportVendors 导出厂商前缀表
func (h *OUIHandler) ExportVendors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ouiRepo.ListVendors(r.Context())
	if err != nil {
		h.logger.Error("ListVendors failed for export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list vendors: %v", err)))
		return
	}

	excelData, err := GenerateOUIExport(rows)
	if err != nil {
		h.logger.Error("GenerateOUIExport failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=oui-vendors.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

// ImportVendors 导入厂商前缀表
func (h *OUIHandler) ImportVendors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeJSON(w, http.StatusOK, Fail("failed to parse form"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("file not found in request"))
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("failed to read file"))
		return
	}

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to parse Excel file: %v", err)))
		return
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		writeJSON(w, http.StatusOK, Fail("Excel file has no sheets"))
		return
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to read rows: %v", err)))
		return
	}

	successCount := 0
	var rowErrors []map[string]any
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if len(row) < 2 || row[0] == "" {
			continue
		}

		oui, err := normalizeOUI(row[0])
		if err != nil {
			rowErrors = append(rowErrors, map[string]any{
				"row":   rowIdx + 1,
				"oui":   row[0],
				"error": err.Error(),
			})
			continue
		}
		vendor := strings.TrimSpace(row[1])
		if vendor == "" {
			rowErrors = append(rowErrors, map[string]any{
				"row":   rowIdx + 1,
				"oui":   row[0],
				"error": "vendor name is empty",
			})
			continue
		}

		if err := h.ouiRepo.UpsertVendor(ctx, oui, vendor); err != nil {
			h.logger.Error("UpsertVendor failed", zap.String("oui", oui), zap.Error(err))
			rowErrors = append(rowErrors, map[string]any{
				"row":   rowIdx + 1,
				"oui":   oui,
				"error": err.Error(),
			})
			continue
		}
		successCount++
	}

	if rowErrors == nil {
		rowErrors = []map[string]any{}
	}

	h.logger.Info("OUI vendors imported",
		zap.Int("success_count", successCount),
		zap.Int("failed_count", len(rowErrors)),
	)

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"success_count": successCount,
		"failed_count":  len(rowErrors),
		"errors":        rowErrors,
	}))
}

// normalizeOUI 规范化厂商前缀为 "AA:BB:CC" 形式
// 接受 "AA:BB:CC"、"AA-BB-CC"、"AABBCC" 三种写法
func normalizeOUI(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ":", "")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 6 {
		return "", fmt.Errorf("invalid OUI prefix: %s", raw)
	}
	s = strings.ToUpper(s)
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", fmt.Errorf("invalid OUI prefix: %s", raw)
		}
	}
	return s[0:2] + ":" + s[2:4] + ":" + s[4:6], nil
}
