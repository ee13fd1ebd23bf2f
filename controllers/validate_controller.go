package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/likexian/whois"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"mailprobe/config"
	"mailprobe/models"
	"mailprobe/utils"
	"mailprobe/verifier"
)

// ValidateController exposes the validation engine over HTTP.
type ValidateController struct {
	DB       *gorm.DB
	Verifier *verifier.Verifier
	Logger   logrus.FieldLogger
}

func NewValidateController(db *gorm.DB, v *verifier.Verifier, logger logrus.FieldLogger) *ValidateController {
	return &ValidateController{
		DB:       db,
		Verifier: v,
		Logger:   logger,
	}
}

// checkRequest carries the per-request option overrides. Fields left at
// zero fall back to the configured engine defaults.
type checkRequest struct {
	Email   string `json:"email"`
	From    string `json:"from"`
	Helo    string `json:"helo"`
	Timeout int    `json:"timeout"`
	MaxMX   int    `json:"max_mx"`
	Ports   string `json:"ports"`
	Verbose bool   `json:"verbose"`
	WHOIS   bool   `json:"whois"`
}

// singleResponse is a Result plus optional WHOIS enrichment.
type singleResponse struct {
	*verifier.Result
	WHOIS string `json:"whois,omitempty"`
}

// optionsFromRequest builds engine options from a parsed request. The
// error strings are the stable tokens the original API exposes.
func (vc *ValidateController) optionsFromRequest(req *checkRequest) (verifier.Options, string) {
	opts := vc.Verifier.Options()
	if req.From != "" {
		opts.FromAddress = req.From
	}
	if req.Helo != "" {
		opts.HeloHost = req.Helo
	}
	if req.Timeout != 0 {
		if req.Timeout < 0 {
			return opts, "invalid_timeout"
		}
		opts.Timeout = time.Duration(req.Timeout) * time.Second
	}
	if req.MaxMX != 0 {
		if req.MaxMX < 0 {
			return opts, "invalid_max_mx"
		}
		opts.MaxMX = req.MaxMX
	}
	if req.Ports != "" {
		ports, err := verifier.ParsePorts(req.Ports)
		if err != nil {
			return opts, "invalid_ports"
		}
		opts.Ports = ports
	}
	opts.Verbose = req.Verbose
	return opts, ""
}

func parseCheckQuery(c *fiber.Ctx) (*checkRequest, string) {
	req := &checkRequest{
		Email:   c.Query("email"),
		From:    c.Query("from"),
		Helo:    c.Query("helo"),
		Ports:   c.Query("ports"),
		Verbose: c.QueryBool("verbose"),
		WHOIS:   c.QueryBool("whois"),
	}
	if s := c.Query("timeout"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, "invalid_timeout"
		}
		req.Timeout = v
	}
	if s := c.Query("max_mx"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, "invalid_max_mx"
		}
		req.MaxMX = v
	}
	return req, ""
}

// VerifyEmail validates one address. GET passes options as query
// parameters, POST as a JSON body.
func (vc *ValidateController) VerifyEmail(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req *checkRequest
	if c.Method() == fiber.MethodGet {
		parsed, errTok := parseCheckQuery(c)
		if errTok != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errTok})
		}
		req = parsed
	} else {
		req = &checkRequest{}
		if err := c.BodyParser(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json"})
		}
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_email"})
	}

	if user.VerifyCredits < 1 {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "Insufficient verification credits",
		})
	}

	opts, errTok := vc.optionsFromRequest(req)
	if errTok != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errTok})
	}

	result, err := vc.Verifier.CheckWith(c.UserContext(), req.Email, opts)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	vc.debitCredits(user, 1)
	vc.persistRecord(user.ID, nil, "api", result)

	resp := singleResponse{Result: result}
	if req.WHOIS && result.Domain != nil {
		if info, err := whois.Whois(*result.Domain); err == nil {
			resp.WHOIS = info
		} else {
			vc.Logger.WithError(err).Debug("whois lookup failed")
		}
	}
	return c.JSON(resp)
}

type bulkRequest struct {
	Emails      []string `json:"emails"`
	Concurrency int      `json:"concurrency"`
	Stream      bool     `json:"stream"`
	Verbose     bool     `json:"verbose"`
}

// BulkVerify validates a list of addresses. The default mode responds with
// the full result list plus summary counters once every address has a
// terminal result; stream mode emits NDJSON per completion instead.
func (vc *ValidateController) BulkVerify(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json"})
	}
	if len(req.Emails) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_emails"})
	}
	if user.VerifyCredits < len(req.Emails) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "Insufficient verification credits",
		})
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = config.AppConfig.Verifier.Concurrency
	}

	opts := vc.Verifier.Options()
	opts.Verbose = req.Verbose

	job := models.ValidationJob{
		PublicID:    uuid.NewString(),
		UserID:      user.ID,
		Name:        "Bulk verification " + time.Now().Format("2006-01-02"),
		Source:      "api",
		Status:      "processing",
		Concurrency: concurrency,
	}
	job.SetInputEmails(req.Emails)
	now := time.Now()
	job.StartedAt = &now
	if err := vc.DB.Create(&job).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create validation job",
		})
	}

	vc.debitCredits(user, len(req.Emails))

	if req.Stream {
		return vc.streamBulk(c, user.ID, &job, req.Emails, concurrency)
	}

	results, summary, err := vc.Verifier.CheckAll(c.UserContext(), req.Emails, concurrency)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	for _, r := range results {
		vc.persistRecord(user.ID, &job.ID, "api", r)
		job.CountFor(r.Status)
	}
	vc.completeJob(&job, "")

	return c.JSON(fiber.Map{
		"job_id":  job.PublicID,
		"summary": summary,
		"results": results,
	})
}

// streamBulk writes one JSON result per line as pipelines complete. A
// client disconnect cancels the batch context, which stops dispatch and
// lets in-flight probes wind down at host boundaries.
func (vc *ValidateController) streamBulk(c *fiber.Ctx, userID uint, job *models.ValidationJob, emails []string, concurrency int) error {
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := vc.Verifier.CheckMany(ctx, emails, concurrency)
	if err != nil {
		cancel()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		enc := json.NewEncoder(w)
		for res := range ch {
			if err := enc.Encode(res); err != nil {
				vc.Logger.WithError(err).Debug("bulk stream closed by client")
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			vc.persistRecord(userID, &job.ID, "api", res)
			job.CountFor(res.Status)
		}
		vc.completeJob(job, "")
	}))
	return nil
}

// GetJob returns a bulk job with its counters and paginated records.
func (vc *ValidateController) GetJob(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var job models.ValidationJob
	if err := vc.DB.Where("public_id = ? AND user_id = ?", c.Params("id"), user.ID).First(&job).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Job not found"})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 100)
	if limit > 1000 {
		limit = 1000
	}

	var records []models.ValidationRecord
	var total int64
	vc.DB.Model(&models.ValidationRecord{}).Where("job_id = ?", job.ID).Count(&total)
	vc.DB.Where("job_id = ?", job.ID).
		Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records)

	return c.JSON(fiber.Map{
		"job": job,
		"records": utils.PaginatedResponse{
			Data:  records,
			Total: total,
			Page:  page,
			Limit: limit,
		},
	})
}

func (vc *ValidateController) persistRecord(userID uint, jobID *uint, source string, r *verifier.Result) {
	record := models.NewValidationRecord(userID, jobID, source, r)
	if err := vc.DB.Create(&record).Error; err != nil {
		vc.Logger.WithError(err).Error("failed to persist validation record")
	}
}

func (vc *ValidateController) debitCredits(user *models.User, n int) {
	user.VerifyCredits -= n
	user.CreditsConsumed += n
	if err := vc.DB.Save(user).Error; err != nil {
		vc.Logger.WithError(err).Error("failed to update user credits")
	}
}

func (vc *ValidateController) completeJob(job *models.ValidationJob, errMsg string) {
	now := time.Now()
	job.CompletedAt = &now
	job.Status = "completed"
	if errMsg != "" {
		job.Status = "failed"
		job.Error = errMsg
	}
	if err := vc.DB.Save(job).Error; err != nil {
		vc.Logger.WithError(err).Error("failed to finalize validation job")
	}
}
