package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const minutesPerDay = 24 * 60

// pickupWindow returns the [from, to] HH:MM range around clock, clamped to the day.
// An empty clock covers the whole day.
func pickupWindow(clock string, windowMin int) (string, string, error) {
	if windowMin < 0 {
		return "", "", fmt.Errorf("window must not be negative")
	}
	if clock == "" {
		return "00:00", "23:59", nil
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", "", fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}

	at := t.Hour()*60 + t.Minute()
	from := max(0, at-windowMin)
	to := min(minutesPerDay-1, at+windowMin)
	return formatClock(from), formatClock(to), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// HandleScheduleAssignments handles GET /api/v1/schedule/assignments
func (h *Handler) HandleScheduleAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dateStr := strings.TrimSpace(q.Get("date"))
	clock := strings.TrimSpace(q.Get("time"))

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		h.handleValidationError(w, "date is required as YYYY-MM-DD")
		return
	}

	windowMin, err := queryInt(r, "window", 0)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	from, to, err := pickupWindow(clock, windowMin)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	logger := log.WithFields(logrus.Fields{"date": dateStr, "from": from, "to": to})
	logger.Debug("GET /api/v1/schedule/assignments")

	personnel, err := h.DB.Schedules().ListScheduled(r.Context(), dateStr, from, to)
	if err != nil {
		logger.WithError(err).Error("Failed to load schedule")
		h.handleInternalError(w, err)
		return
	}

	result := h.Assigner.Assign(r.Context(), personnel, date)
	logger.WithFields(logrus.Fields{
		"entries":  len(result.Entries),
		"warnings": len(result.Warnings),
	}).Info("Assigned pickup stops")

	h.writeJSON(w, http.StatusOK, result)
}
