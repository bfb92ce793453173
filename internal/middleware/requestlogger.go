package middleware

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/repository"
)

// Buffered channel for async logging
var logChannel chan models.RequestLog

// Initializes the request logger
func InitRequestLogger(repo *repository.RequestLogRepository, bufferSize int) {
	logChannel = make(chan models.RequestLog, bufferSize)

	// Start background worker to batch insert logs
	go func() {
		batch := make([]models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)

				// Insert when batch is full
				if len(batch) >= 100 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			case <-ticker.C:
				// Periodically insert remaining logs
				if len(batch) > 0 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			}
		}
	}()
}

// Inserts a batch of logs into the database
func insertBatch(repo *repository.RequestLogRepository, logs []models.RequestLog) {
	if err := repo.CreateBatch(context.Background(), logs); err != nil {
		// Log error but dont block
		log.Printf("Failed to insert request logs: %v", err)
	}
}

// Logs all HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Calculate duration
		duration := time.Since(start)

		// Extract subject ID if present
		var userID *uuid.UUID
		if uid := c.GetString("uid"); uid != "" {
			if id, err := uuid.Parse(uid); err == nil {
				userID = &id
			}
		}

		// Create log entry
		logEntry := models.RequestLog{
			Timestamp:      start,
			UserID:         userID,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			Operation:      c.GetString("operation"),
		}

		// Send to channel for async processing
		select {
		case logChannel <- logEntry:
			// Successfully queued
		default:
			// Channel full, skip logging to avoid blocking
			log.Printf("Request log channel full, skipping log entry")
		}
	}
}
