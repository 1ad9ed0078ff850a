package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsCountIntakeOutcomes(t *testing.T) {
	m := NewMetrics()
	m.RecordIntake("whatsapp", "new_ticket", 20*time.Millisecond)
	m.RecordIntake("whatsapp", "new_ticket", 10*time.Millisecond)
	m.RecordIntake("email", "appended", time.Millisecond)
	m.RecordRejection("whatsapp", "CONFIGURATION_ERROR")
	m.RecordAcknowledgment("whatsapp", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.intakeOutcomes.WithLabelValues("whatsapp", "new_ticket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intakeOutcomes.WithLabelValues("email", "appended")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intakeRejections.WithLabelValues("whatsapp", "CONFIGURATION_ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acknowledgments.WithLabelValues("whatsapp", "sent")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordIntake("whatsapp", "new_ticket", time.Millisecond)
		m.RecordRejection("whatsapp", "X")
		m.RecordAcknowledgment("whatsapp", "sent")
		m.RecordUserResolution("whatsapp", "created")
		m.RecordEventPublication("ticket_created", "ok")
	})
	assert.Nil(t, m.Registry())
}

func TestRequestLoggerRecordsAndTagsRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request completed", logs.All()[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/ping", "200")))
}
