package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/tree"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

const (
	categoriesSheet = "Categories"
	maxImportRows   = 5000
	maxExportRows   = 10000
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	SkippedCount int              `json:"skippedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	CreatedIDs   []string         `json:"createdIds,omitempty"`
}

type ImportHandler struct {
	repo   *repository.CategoryRepository
	logger *logrus.Entry
}

func NewImportHandler(repo *repository.CategoryRepository, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{repo: repo, logger: logger.WithField("handler", "category-import")}
}

// CategoryImportTemplate returns the template definition for categories
func CategoryImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "categories",
		Version: "2.0",
		Columns: []ImportTemplateColumn{
			{Name: "name", Description: "Category name", Required: true, Type: "string", Example: "Electronics"},
			{Name: "slug", Description: "URL-friendly slug (auto-generated if empty)", Required: false, Type: "string", Example: "electronics"},
			{Name: "parentSlug", Description: "Slug of the parent category, in the store or earlier in this file", Required: false, Type: "string", Example: "electronics"},
			{Name: "description", Description: "Category description", Required: false, Type: "string", Example: "Electronic devices and accessories"},
			{Name: "position", Description: "Display order position", Required: false, Type: "number", Example: "1"},
			{Name: "isActive", Description: "Whether category is active (true/false)", Required: false, Type: "boolean", Example: "true"},
			{Name: "imageUrl", Description: "Category image URL", Required: false, Type: "string", Example: "https://example.com/image.jpg"},
		},
		SampleData: []map[string]string{
			{
				"name":        "Electronics",
				"slug":        "electronics",
				"parentSlug":  "",
				"description": "Electronic devices and accessories",
				"position":    "1",
				"isActive":    "true",
				"imageUrl":    "",
			},
			{
				"name":        "Smartphones",
				"slug":        "smartphones",
				"parentSlug":  "electronics",
				"description": "Latest smartphones and accessories",
				"position":    "1",
				"isActive":    "true",
				"imageUrl":    "",
			},
		},
	}
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/categories/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := CategoryImportTemplate()

	switch c.DefaultQuery("format", "json") {
	case "csv":
		headers, rows := templateTable(template)
		writeCSV(c, "categories_import_template.csv", headers, rows)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

func templateTable(template ImportTemplate) ([]string, [][]string) {
	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	rows := make([][]string, 0, len(template.SampleData))
	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[col.Name]
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func writeCSV(c *gin.Context, filename string, headers []string, rows [][]string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	_ = writer.Write(headers)
	for _, row := range rows {
		_ = writer.Write(row)
	}
}

func headerStyles(f *excelize.File) (header, required int) {
	header, _ = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	required, _ = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})
	return header, required
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", categoriesSheet)
	headerStyle, requiredStyle := headerStyles(f)

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		style := headerStyle
		if col.Required {
			headerText = col.Name + " *"
			style = requiredStyle
		}
		f.SetCellValue(categoriesSheet, cell, headerText)
		f.SetCellStyle(categoriesSheet, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(categoriesSheet, colName, colName, 20)
	}

	for rowIdx, sample := range template.SampleData {
		for colIdx, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(categoriesSheet, cell, sample[col.Name])
		}
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Category Import Instructions")
	f.SetCellValue("Instructions", "A2", "Rows may reference a parent defined later in the file; parents are created first.")
	f.SetCellValue("Instructions", "A3", "Column Definitions:")

	for i, col := range template.Columns {
		row := i + 4
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(categoriesSheet)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=categories_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Warn("Failed to write import template")
	}
}

// ImportCategories imports categories into a store from a CSV or Excel file
// POST /api/v1/categories/import
func (h *ImportHandler) ImportCategories(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	userID := c.GetString("user_id")

	storeID, err := uuid.Parse(c.PostForm("storeId"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "STORE_REQUIRED", "storeId form field is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or Excel file")
		return
	}
	defer file.Close()

	skipDuplicates := c.DefaultPostForm("skipDuplicates", "false") == "true"
	validateOnly := c.DefaultPostForm("validateOnly", "false") == "true"

	var rows []map[string]string
	var parseErr error
	switch detectFormat(header.Filename) {
	case ImportFormatCSV:
		rows, parseErr = parseCSV(file)
	case ImportFormatXLSX:
		rows, parseErr = parseXLSX(file)
	default:
		errorJSON(c, http.StatusBadRequest, "INVALID_FORMAT", "Only CSV and XLSX files are supported")
		return
	}

	if parseErr != nil {
		errorJSON(c, http.StatusBadRequest, "PARSE_ERROR", parseErr.Error())
		return
	}
	if len(rows) == 0 {
		errorJSON(c, http.StatusBadRequest, "EMPTY_FILE", "The file contains no data rows")
		return
	}
	if len(rows) > maxImportRows {
		errorJSON(c, http.StatusBadRequest, "TOO_MANY_ROWS", fmt.Sprintf("Maximum %d rows can be imported at once", maxImportRows))
		return
	}

	result := h.processImportRows(c.Request.Context(), tenantID, userID, storeID, rows, skipDuplicates, validateOnly)
	c.JSON(http.StatusOK, result)
}

func detectFormat(filename string) ImportFormat {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return ImportFormatCSV
	case strings.HasSuffix(lower, ".xlsx"):
		return ImportFormatXLSX
	}
	return ""
}

func normalizeHeaders(headers []string) {
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}
}

func parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	normalizeHeaders(headers)

	var rows []map[string]string
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}
		lineNum++

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(lineNum)
		rows = append(rows, row)
	}

	return rows, nil
}

func parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, categoriesSheet) {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := excelRows[0]
	normalizeHeaders(headers)

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		empty := true
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
				if row[headers[i]] != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		row["_row"] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}

// importRow is a parsed row waiting for its parent to be resolved
type importRow struct {
	row        int
	category   *models.Category
	parentSlug string
}

func (h *ImportHandler) processImportRows(ctx context.Context, tenantID, userID string, storeID uuid.UUID, rows []map[string]string, skipDuplicates, validateOnly bool) *ImportResult {
	result := &ImportResult{
		TotalRows:  len(rows),
		Errors:     make([]ImportRowError, 0),
		CreatedIDs: make([]string, 0),
	}
	rowError := func(row int, column, code, message string) {
		result.Errors = append(result.Errors, ImportRowError{Row: row, Column: column, Code: code, Message: message})
	}

	// slug -> id of categories created by this file or already in the store
	known := map[string]uuid.UUID{}
	lookup := func(slug string) (uuid.UUID, bool, error) {
		if id, ok := known[slug]; ok {
			return id, true, nil
		}
		existing, err := h.repo.GetBySlug(ctx, tenantID, storeID, slug)
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return uuid.Nil, false, nil
		}
		if err != nil {
			return uuid.Nil, false, err
		}
		known[slug] = existing.ID
		return existing.ID, true, nil
	}

	pending := make([]importRow, 0, len(rows))
	inFile := map[string]bool{}
	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row["_row"])

		name := row["name"]
		if name == "" {
			rowError(rowNum, "name", "REQUIRED_FIELD", "Required field 'name' is empty")
			continue
		}
		slug := row["slug"]
		if slug == "" {
			slug = generateSlug(name)
		}
		if !isValidSlug(slug) {
			rowError(rowNum, "slug", "INVALID_SLUG", "Slug must contain only lowercase letters, numbers, and hyphens")
			continue
		}
		if inFile[slug] {
			rowError(rowNum, "slug", "DUPLICATE_SLUG", fmt.Sprintf("Slug '%s' appears more than once in the file", slug))
			continue
		}

		_, exists, err := lookup(slug)
		if err != nil {
			rowError(rowNum, "slug", "DB_ERROR", "Failed to check for duplicate slug")
			continue
		}
		if exists {
			if skipDuplicates {
				result.SkippedCount++
			} else {
				rowError(rowNum, "slug", "DUPLICATE_SLUG", repository.ErrDuplicateSlug.Error())
			}
			continue
		}
		inFile[slug] = true

		category := &models.Category{
			ID:          uuid.New(),
			TenantID:    tenantID,
			StoreID:     storeID,
			Name:        name,
			Slug:        slug,
			Position:    1,
			IsActive:    true,
			CreatedByID: userID,
			UpdatedByID: userID,
		}
		if row["description"] != "" {
			category.Description = stringPtr(row["description"])
		}
		if row["imageurl"] != "" {
			category.ImageURL = stringPtr(row["imageurl"])
		}
		if row["position"] != "" {
			pos, err := strconv.Atoi(row["position"])
			if err != nil {
				rowError(rowNum, "position", "INVALID_NUMBER", "Position must be a whole number")
				continue
			}
			category.Position = pos
		}
		if row["isactive"] != "" {
			category.IsActive = strings.EqualFold(row["isactive"], "true")
		}

		known[slug] = category.ID
		pending = append(pending, importRow{row: rowNum, category: category, parentSlug: row["parentslug"]})
	}

	// Resolve parents now that every slug in the file has an id
	resolved := make([]importRow, 0, len(pending))
	for _, p := range pending {
		if p.parentSlug != "" {
			parentID, ok, err := lookup(p.parentSlug)
			if err != nil {
				rowError(p.row, "parentSlug", "DB_ERROR", "Failed to look up parent category")
				continue
			}
			if !ok {
				rowError(p.row, "parentSlug", "INVALID_PARENT", fmt.Sprintf("Parent category '%s' not found", p.parentSlug))
				continue
			}
			p.category.ParentID = &parentID
		}
		resolved = append(resolved, p)
	}

	ordered, cyclic := orderParentsFirst(resolved)
	for _, p := range cyclic {
		rowError(p.row, "parentSlug", "PARENT_CYCLE", "Parent references form a cycle")
	}

	if validateOnly {
		result.Success = len(result.Errors) == 0
		result.SuccessCount = len(ordered)
		result.FailedCount = result.TotalRows - len(ordered) - result.SkippedCount
		return result
	}

	if len(ordered) == 0 {
		result.Success = false
		result.FailedCount = result.TotalRows - result.SkippedCount
		return result
	}

	categories := make([]*models.Category, len(ordered))
	for i, p := range ordered {
		categories[i] = p.category
	}

	bulkResult, err := h.repo.BulkCreate(ctx, tenantID, categories)
	if err != nil && (bulkResult == nil || bulkResult.Success == 0) {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Category import failed")
		result.Success = false
		result.Errors = append(result.Errors, ImportRowError{Code: "BULK_CREATE_FAILED", Message: err.Error()})
		result.FailedCount = result.TotalRows - result.SkippedCount
		return result
	}

	for _, cat := range bulkResult.Created {
		result.CreatedIDs = append(result.CreatedIDs, cat.ID.String())
	}
	for _, bulkErr := range bulkResult.Errors {
		rowNum := 0
		if bulkErr.Index < len(ordered) {
			rowNum = ordered[bulkErr.Index].row
		}
		rowError(rowNum, "", bulkErr.Code, bulkErr.Message)
	}

	result.SuccessCount = bulkResult.Success
	result.FailedCount = result.TotalRows - result.SuccessCount - result.SkippedCount
	result.Success = result.SuccessCount > 0
	return result
}

// orderParentsFirst sorts rows so every row comes after the row of its
// parent. Rows whose parent chain loops back into the file are returned in
// cyclic.
func orderParentsFirst(rows []importRow) (ordered, cyclic []importRow) {
	byID := make(map[string]importRow, len(rows))
	flat := make([]tree.Category, 0, len(rows))
	for _, r := range rows {
		id := r.category.ID.String()
		byID[id] = r
		tc := tree.Category{ID: id, Name: r.category.Name}
		if r.category.ParentID != nil {
			parent := r.category.ParentID.String()
			tc.ParentID = &parent
		}
		flat = append(flat, tc)
	}

	// Parents outside the file are already stored; those rows are roots here
	for i := range flat {
		if flat[i].ParentID != nil {
			if _, ok := byID[*flat[i].ParentID]; !ok {
				flat[i].ParentID = nil
			}
		}
	}

	placed := make(map[string]bool, len(rows))
	tree.Walk(tree.BuildCategoryTree(flat), func(n *tree.Node, _ int) bool {
		ordered = append(ordered, byID[n.ID])
		placed[n.ID] = true
		return true
	})
	for _, r := range rows {
		if !placed[r.category.ID.String()] {
			cyclic = append(cyclic, r)
		}
	}
	return ordered, cyclic
}

// ExportCategories downloads every category of a store, parents first, as
// CSV or Excel. The file can be imported back with the import endpoint.
// GET /api/v1/categories/export
func (h *ImportHandler) ExportCategories(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		return
	}
	storeID, err := uuid.Parse(c.Query("storeId"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "STORE_REQUIRED", "storeId query parameter is required")
		return
	}

	categories, _, err := h.repo.GetAll(c.Request.Context(), tenantID, &storeID, maxExportRows, 0)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load categories for export")
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export categories")
		return
	}

	headers, rows := exportTable(categories)
	filename := fmt.Sprintf("categories_%s", time.Now().UTC().Format("20060102"))

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.writeXLSXExport(c, filename+".xlsx", headers, rows)
	default:
		writeCSV(c, filename+".csv", headers, rows)
	}
}

// exportTable lays categories out in import column order plus id and path
func exportTable(categories []models.Category) ([]string, [][]string) {
	headers := []string{"name", "slug", "parentSlug", "description", "position", "isActive", "imageUrl", "id", "path"}

	flat := make([]tree.Category, 0, len(categories))
	byID := make(map[string]models.Category, len(categories))
	for _, cat := range categories {
		flat = append(flat, cat.ToTreeCategory(0))
		byID[cat.ID.String()] = cat
	}

	row := func(cat models.Category) []string {
		parentSlug := ""
		if cat.ParentID != nil {
			if parent, ok := byID[cat.ParentID.String()]; ok {
				parentSlug = parent.Slug
			}
		}
		chain := tree.GetParentChain(cat.ID.String(), flat)
		path := make([]string, 0, len(chain)+1)
		for i := len(chain) - 1; i >= 0; i-- {
			path = append(path, byID[chain[i]].Name)
		}
		path = append(path, cat.Name)

		return []string{
			cat.Name,
			cat.Slug,
			parentSlug,
			deref(cat.Description),
			strconv.Itoa(cat.Position),
			strconv.FormatBool(cat.IsActive),
			deref(cat.ImageURL),
			cat.ID.String(),
			strings.Join(path, " > "),
		}
	}

	rows := make([][]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	tree.Walk(tree.BuildCategoryTree(flat), func(n *tree.Node, _ int) bool {
		if !seen[n.ID] {
			seen[n.ID] = true
			rows = append(rows, row(byID[n.ID]))
		}
		return true
	})
	// Rows outside the tree (dangling or cyclic parents) go last
	for _, cat := range categories {
		if !seen[cat.ID.String()] {
			seen[cat.ID.String()] = true
			rows = append(rows, row(cat))
		}
	}
	return headers, rows
}

func (h *ImportHandler) writeXLSXExport(c *gin.Context, filename string, headers []string, rows [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", categoriesSheet)
	headerStyle, _ := headerStyles(f)

	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(categoriesSheet, cell, name)
		f.SetCellStyle(categoriesSheet, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(categoriesSheet, colName, colName, 20)
	}
	for r, row := range rows {
		for i, value := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			f.SetCellValue(categoriesSheet, cell, value)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Warn("Failed to write category export")
	}
}

// Helper functions

func stringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
