package controller

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mailprobe/config"
	"mailprobe/models"
)

type jobProgress struct {
	Status        string `json:"status"`
	Total         int    `json:"total"`
	Processed     int    `json:"processed"`
	Deliverable   int    `json:"deliverable"`
	Undeliverable int    `json:"undeliverable"`
	Unknown       int    `json:"unknown"`
	Invalid       int    `json:"invalid"`
	Percent       int    `json:"percent"`
}

// HandleJobProgressWS streams bulk job counters to the client until the
// job reaches a terminal state or the client goes away.
func HandleJobProgressWS(c *websocket.Conn) {
	defer c.Close()

	publicID := c.Params("id")
	userID, _ := c.Locals("userID").(uint)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var job models.ValidationJob
		if err := config.DB.Where("public_id = ? AND user_id = ?", publicID, userID).First(&job).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				logrus.WithError(err).Error("job progress lookup failed")
			}
			c.WriteJSON(wsError("job_not_found"))
			return
		}

		progress := jobProgress{
			Status:        job.Status,
			Total:         job.TotalCount,
			Processed:     job.ProcessedCount,
			Deliverable:   job.DeliverableCount,
			Undeliverable: job.UndeliverableCount,
			Unknown:       job.UnknownCount,
			Invalid:       job.InvalidCount,
		}
		if job.TotalCount > 0 {
			progress.Percent = job.ProcessedCount * 100 / job.TotalCount
		}

		if err := c.WriteJSON(progress); err != nil {
			return
		}
		if job.Status == "completed" || job.Status == "failed" {
			return
		}
	}
}

func wsError(msg string) map[string]string {
	return map[string]string{"error": msg}
}
