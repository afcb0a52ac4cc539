package jobs

import (
	"log"
	"strconv"
	"sync/atomic"

	config "github.com/nikhilb/event_booking/configs"
	"github.com/nikhilb/event_booking/services"
)

var sweepRunning atomic.Bool

// SweepIntervalMinutes reads SEAT_LOCK_CLEANUP_MINUTES, defaulting to 1.
func SweepIntervalMinutes() int {
	raw := config.Config("SEAT_LOCK_CLEANUP_MINUTES")
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// ReleaseExpiredSeatLocks is the cron entrypoint. A run that overlaps the
// previous one is skipped; the sweep itself is idempotent but there is no
// point stacking transactions.
func ReleaseExpiredSeatLocks() {
	if !sweepRunning.CompareAndSwap(false, true) {
		log.Println("⚠️ Seat lock sweep still running, skipping this tick")
		return
	}
	defer sweepRunning.Store(false)

	result, err := services.SweepExpiredSeatLocks()
	if err != nil {
		log.Printf("🔥 Seat lock sweep failed: %v", err)
		return
	}
	if result.ReleasedBookings > 0 {
		log.Printf("✅ Seat lock sweep released %d seat(s) across %d booking(s)",
			result.ReleasedSeats, result.ReleasedBookings)
	}
}
