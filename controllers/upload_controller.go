package controller

import (
	"encoding/csv"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"mailprobe/models"
)

const maxUploadAddresses = 100000

// UploadAndVerify accepts a multipart CSV, XLSX or plain-text file of
// addresses and queues a background validation job; the worker picks it up
// and the websocket/job endpoints report progress.
func (vc *ValidateController) UploadAndVerify(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_file"})
	}

	emails, err := parseAddressFile(fileHeader)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(emails) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_addresses_found"})
	}
	if len(emails) > maxUploadAddresses {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "too_many_addresses"})
	}
	if user.VerifyCredits < len(emails) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "Insufficient verification credits",
		})
	}

	job := models.ValidationJob{
		PublicID:    uuid.NewString(),
		UserID:      user.ID,
		Name:        fileHeader.Filename + " " + time.Now().Format("2006-01-02 15:04"),
		Source:      "upload",
		Status:      "pending",
		Concurrency: 0, // worker applies the configured default
	}
	job.SetInputEmails(emails)
	if err := vc.DB.Create(&job).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create validation job",
		})
	}

	vc.debitCredits(user, len(emails))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.PublicID,
		"total":  len(emails),
	})
}

// parseAddressFile extracts one address per row from the uploaded file,
// skipping blank lines and #-comments. CSV and XLSX take the first column;
// a header row named "email" is skipped.
func parseAddressFile(fh *multipart.FileHeader) ([]string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable_file")
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".xlsx":
		return parseXLSX(f)
	case ".csv":
		return parseCSV(f)
	default:
		return parseLines(f)
	}
}

func parseLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var emails []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails = append(emails, line)
	}
	return emails, nil
}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var emails []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if addr := cleanCell(row[0]); addr != "" {
			emails = append(emails, addr)
		}
	}
	return emails, nil
}

func parseXLSX(r io.Reader) ([]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	var emails []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if addr := cleanCell(row[0]); addr != "" {
			emails = append(emails, addr)
		}
	}
	return emails, nil
}

func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "email") || strings.HasPrefix(cell, "#") {
		return ""
	}
	return cell
}
