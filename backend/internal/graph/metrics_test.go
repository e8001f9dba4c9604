package graph

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	apperrors "mnemo/backend/pkg/errors"
)

func TestMetrics_RecordSuccess(t *testing.T) {
	m := NewMetrics()

	m.record("create_user", 25*time.Millisecond, nil)
	m.record("create_user", 40*time.Millisecond, nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.operationsTotal.WithLabelValues("create_user", "ok"),
	))
	assert.Equal(t, float64(0), testutil.ToFloat64(
		m.operationsTotal.WithLabelValues("create_user", "error"),
	))
}

func TestMetrics_RecordErrorByKind(t *testing.T) {
	m := NewMetrics()

	m.record("get_user", 5*time.Millisecond, apperrors.NotFound("user not found"))
	m.record("create_org", 5*time.Millisecond, apperrors.DuplicateKey("exists", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.operationsTotal.WithLabelValues("get_user", "error"),
	))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.errorsTotal.WithLabelValues("get_user", "not_found"),
	))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.errorsTotal.WithLabelValues("create_org", "duplicate_key"),
	))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// two collectors must not collide on registration
	a := NewMetrics()
	b := NewMetrics()
	assert.NotSame(t, a.Registry(), b.Registry())
}
