package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
)

// Redis-backed audit log and daily analytics counters. Both are fire-and-
// forget side channels: every write swallows its error so an unavailable
// sink can never fail or roll back a booking transaction.

const auditLogKey = "audit:logs"
const auditLogMax = 1000

type AuditEntry struct {
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

func AuditLog(action string, userID uuid.UUID, details string) {
	if database.Redis == nil {
		return
	}

	entry := AuditEntry{
		Action:    action,
		UserID:    userID.String(),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := database.Redis.Pipeline()
	pipe.LPush(ctx, auditLogKey, payload)
	pipe.LTrim(ctx, auditLogKey, 0, auditLogMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("audit log write failed: %v", err)
	}
}

func RecentAuditLogs(limit int) []AuditEntry {
	if database.Redis == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := database.Redis.LRange(ctx, auditLogKey, 0, int64(limit-1)).Result()
	if err != nil {
		log.Printf("audit log read failed: %v", err)
		return nil
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(row), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

func analyticsKey(day string) string {
	return fmt.Sprintf("analytics:%s", day)
}

// RecordBookingAnalytics bumps the per-day seats-booked and revenue
// counters, keyed by UTC date.
func RecordBookingAnalytics(seats int, revenue float64) {
	if database.Redis == nil {
		return
	}

	day := time.Now().UTC().Format("2006-01-02")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := database.Redis.Pipeline()
	pipe.HIncrBy(ctx, analyticsKey(day), "total_bookings", int64(seats))
	pipe.HIncrByFloat(ctx, analyticsKey(day), "total_revenue", revenue)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics write failed: %v", err)
	}
}

// DailyAnalytics returns the counters for one UTC date (YYYY-MM-DD).
func DailyAnalytics(day string) map[string]string {
	if database.Redis == nil {
		return map[string]string{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	values, err := database.Redis.HGetAll(ctx, analyticsKey(day)).Result()
	if err != nil {
		log.Printf("analytics read failed: %v", err)
		return map[string]string{}
	}
	return values
}
