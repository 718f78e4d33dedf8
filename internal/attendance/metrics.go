package attendance

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schoolinfo/internal/apperr"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_operations_total",
		Help: "Attendance workflow operations by result.",
	}, []string{"op", "result"})

	generatedDates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_generated_dates_total",
		Help: "Attendance dates created by generate.",
	})
)

func observe(op string, err error) {
	operations.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := apperr.IsValidation(err); ok {
		return "invalid"
	}
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	}
	return "error"
}
