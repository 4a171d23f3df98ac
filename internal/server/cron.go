package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/metrics"
)

func (s *Server) cronFailed(c echo.Context, job string, err error) error {
	metrics.RecordCron(job, err)
	s.log.WithJob(job).Error().Err(err).Msg("Cron job failed")
	return jsonError(c, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleCronFetch(c echo.Context) error {
	result, err := s.pipeline.Fetch(c.Request().Context())
	if err != nil {
		return s.cronFailed(c, "fetch", err)
	}
	metrics.RecordCron("fetch", nil)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCronGenerate(c echo.Context) error {
	result, err := s.pipeline.Run(c.Request().Context())
	if err != nil {
		return s.cronFailed(c, "generate", err)
	}
	metrics.RecordCron("generate", nil)
	if result.Validation != nil && !result.Validation.Valid {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCronSendApproval(c echo.Context) error {
	result, err := s.workflow.ResendPending(c.Request().Context())
	if err != nil {
		return s.cronFailed(c, "send-approval", err)
	}
	metrics.RecordCron("send-approval", nil)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCronPublish(c echo.Context) error {
	result, err := s.publisher.Sweep(c.Request().Context(), s.now())
	if err != nil {
		return s.cronFailed(c, "publish", err)
	}
	metrics.RecordCron("publish", nil)
	return c.JSON(http.StatusOK, result)
}
