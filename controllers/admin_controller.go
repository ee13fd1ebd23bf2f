package controller

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"mailprobe/models"
	"mailprobe/utils"
)

// AdminController serves the listing, export and stats endpoints. All of
// its routes sit behind the AdminOnly middleware.
type AdminController struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger
}

func NewAdminController(db *gorm.DB, logger logrus.FieldLogger) *AdminController {
	return &AdminController{DB: db, Logger: logger}
}

// ListValidations returns stored validation records, newest first.
func (ac *AdminController) ListValidations(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 100)
	if limit > 1000 {
		limit = 1000
	}

	query := ac.DB.Model(&models.ValidationRecord{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var records []models.ValidationRecord
	if err := query.Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list validations",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  records,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// Stats returns per-status counts plus job totals.
func (ac *AdminController) Stats(c *fiber.Ctx) error {
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := ac.DB.Model(&models.ValidationRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	byStatus := make(map[string]int64, len(counts))
	var total int64
	for _, sc := range counts {
		byStatus[sc.Status] = sc.Count
		total += sc.Count
	}

	var jobs int64
	ac.DB.Model(&models.ValidationJob{}).Count(&jobs)
	var users int64
	ac.DB.Model(&models.User{}).Count(&users)

	return c.JSON(fiber.Map{
		"total_validations": total,
		"by_status":         byStatus,
		"jobs":              jobs,
		"users":             users,
	})
}

var exportHeader = []string{
	"email", "normalized_email", "domain", "status", "reason",
	"is_deliverable", "is_catch_all", "is_disposable",
	"domain_has_mx", "smtp_connectable", "mx_hosts",
}

func exportRow(r *models.ValidationRecord) []string {
	return []string{
		r.Email,
		strOrEmpty(r.NormalizedEmail),
		strOrEmpty(r.Domain),
		r.Status,
		strOrEmpty(r.Reason),
		triState(r.IsDeliverable),
		triState(r.IsCatchAll),
		triState(r.IsDisposable),
		yesNo(r.DomainHasMX),
		yesNo(r.SMTPConnectable),
		r.MXHosts,
	}
}

// ExportValidations returns every stored record as CSV or XLSX, built in
// memory and sent in one response. Logs are omitted from tabular forms.
func (ac *AdminController) ExportValidations(c *fiber.Ctx) error {
	format := c.Query("format", "csv")
	switch format {
	case "csv":
		return ac.exportCSV(c)
	case "xlsx":
		return ac.exportXLSX(c)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_format"})
	}
}

func (ac *AdminController) exportCSV(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="validations.csv"`)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Write(exportHeader)

	if err := ac.forEachRecord(func(r *models.ValidationRecord) {
		cw.Write(exportRow(r))
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}
	cw.Flush()
	return c.Send(buf.Bytes())
}

func (ac *AdminController) exportXLSX(c *fiber.Ctx) error {
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)

	for col, name := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		book.SetCellValue(sheet, cell, name)
	}

	rowIdx := 2
	if err := ac.forEachRecord(func(r *models.ValidationRecord) {
		for col, val := range exportRow(r) {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx)
			book.SetCellValue(sheet, cell, val)
		}
		rowIdx++
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="validations.xlsx"`)
	return c.Send(buf.Bytes())
}

// forEachRecord walks all records in database batches of 1000 rather than
// loading them with a single query.
func (ac *AdminController) forEachRecord(fn func(*models.ValidationRecord)) error {
	var records []models.ValidationRecord
	return ac.DB.Model(&models.ValidationRecord{}).
		Order("id ASC").
		FindInBatches(&records, 1000, func(tx *gorm.DB, batch int) error {
			for i := range records {
				fn(&records[i])
			}
			return nil
		}).Error
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func triState(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
