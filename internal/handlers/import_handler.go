package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
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
	catalog *services.CatalogService
}

func NewImportHandler(catalog *services.CatalogService) *ImportHandler {
	return &ImportHandler{catalog: catalog}
}

// CategoryImportTemplate returns the template definition for categories.
// Rows reference their parent by slug so a single file can build a whole
// subtree top-down.
func CategoryImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "categories",
		Version: "1.0",
		Columns: []ImportTemplateColumn{
			{Name: "name", Description: "Category name", Required: true, Type: "string", Example: "Electronics"},
			{Name: "slug", Description: "URL-friendly slug (auto-generated if empty)", Required: false, Type: "string", Example: "electronics"},
			{Name: "description", Description: "Category description", Required: false, Type: "string", Example: "Electronic devices and accessories"},
			{Name: "parentSlug", Description: "Slug of the parent category (empty for root)", Required: false, Type: "string", Example: "electronics"},
			{Name: "status", Description: "active or inactive", Required: false, Type: "string", Example: "active"},
			{Name: "imageUrl", Description: "Category image URL", Required: false, Type: "string", Example: "https://example.com/image.jpg"},
			{Name: "metaTitle", Description: "SEO title", Required: false, Type: "string", Example: "Buy Electronics Online"},
			{Name: "metaDescription", Description: "SEO meta description", Required: false, Type: "string", Example: "Shop for the best electronics"},
		},
		SampleData: []map[string]string{
			{
				"name":            "Electronics",
				"slug":            "electronics",
				"description":     "Electronic devices and accessories",
				"parentslug":      "",
				"status":          "active",
				"imageurl":        "",
				"metatitle":       "Buy Electronics Online",
				"metadescription": "Shop for the best electronics",
			},
			{
				"name":            "Smartphones",
				"slug":            "smartphones",
				"description":     "Latest smartphones and accessories",
				"parentslug":      "electronics",
				"status":          "active",
				"imageurl":        "",
				"metatitle":       "Buy Smartphones Online",
				"metadescription": "Shop for latest smartphones",
			},
		},
	}
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/categories/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := CategoryImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=categories_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)

	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[strings.ToLower(col.Name)]
		}
		writer.Write(row)
	}
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Categories"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	for rowIdx, sample := range template.SampleData {
		for colIdx, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, sample[strings.ToLower(col.Name)])
		}
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Category Import Instructions")
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
	f.SetColWidth("Instructions", "B", "B", 40)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=categories_import_template.xlsx")

	f.Write(c.Writer)
}

// ImportCategories imports categories from CSV or Excel file
// POST /api/v1/categories/import
func (h *ImportHandler) ImportCategories(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or Excel file",
			},
		})
		return
	}
	defer file.Close()

	skipDuplicates := c.DefaultPostForm("skipDuplicates", "false") == "true"

	filename := header.Filename
	var format ImportFormat
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		format = ImportFormatCSV
	} else if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		format = ImportFormatXLSX
	} else {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only CSV and XLSX files are supported",
			},
		})
		return
	}

	var rows []map[string]string
	var parseErr error

	if format == ImportFormatCSV {
		rows, parseErr = h.parseCSV(file)
	} else {
		rows, parseErr = h.parseXLSX(file)
	}

	if parseErr != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "PARSE_ERROR",
				Message: parseErr.Error(),
			},
		})
		return
	}

	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EMPTY_FILE",
				Message: "The file contains no data rows",
			},
		})
		return
	}

	result := h.processImportRows(rows, skipDuplicates)

	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

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

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

func (h *ImportHandler) parseXLSX(file io.Reader) ([]map[string]string, error) {
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
		if strings.EqualFold(name, "Categories") {
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
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}

// processImportRows feeds each row through the regular create path in
// file order, so parents defined earlier in the file are visible to
// later rows referencing them by slug.
func (h *ImportHandler) processImportRows(rows []map[string]string, skipDuplicates bool) *ImportResult {
	result := &ImportResult{
		TotalRows:  len(rows),
		Errors:     make([]ImportRowError, 0),
		CreatedIDs: make([]string, 0),
	}

	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row["_row"])

		if row["name"] == "" {
			result.Errors = append(result.Errors, ImportRowError{
				Row:     rowNum,
				Column:  "name",
				Code:    "REQUIRED_FIELD",
				Message: "Required field 'name' is empty",
			})
			result.FailedCount++
			continue
		}

		req := &models.CreateCategoryRequest{Name: row["name"]}
		if row["slug"] != "" {
			req.Slug = stringPtr(row["slug"])
		}
		if row["description"] != "" {
			req.Description = stringPtr(row["description"])
		}
		if row["imageurl"] != "" {
			req.ImageURL = stringPtr(row["imageurl"])
		}
		if row["metatitle"] != "" {
			req.MetaTitle = stringPtr(row["metatitle"])
		}
		if row["metadescription"] != "" {
			req.MetaDescription = stringPtr(row["metadescription"])
		}
		if row["status"] != "" {
			status := models.CategoryStatus(strings.ToLower(row["status"]))
			req.Status = &status
		}

		if row["parentslug"] != "" {
			parent, err := h.catalog.GetBySlug(row["parentslug"])
			if err != nil {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     rowNum,
					Column:  "parentSlug",
					Code:    "INVALID_PARENT",
					Message: fmt.Sprintf("Parent category with slug '%s' not found", row["parentslug"]),
				})
				result.FailedCount++
				continue
			}
			req.ParentID = &parent.ID
		}

		category, err := h.catalog.Create(req)
		if err != nil {
			var validationErr *services.ValidationError
			if skipDuplicates && errors.As(err, &validationErr) && validationErr.Field == "slug" {
				result.SkippedCount++
				continue
			}
			result.Errors = append(result.Errors, ImportRowError{
				Row:     rowNum,
				Code:    "CREATE_FAILED",
				Message: err.Error(),
			})
			result.FailedCount++
			continue
		}

		result.CreatedIDs = append(result.CreatedIDs, category.ID.String())
		result.SuccessCount++
	}

	result.Success = result.SuccessCount > 0 && result.FailedCount == 0
	return result
}

func stringPtr(s string) *string {
	return &s
}
