package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gotriangle/adapters/excel"
	"gotriangle/app"
	domainTriangle "gotriangle/domain/triangle"
	"gotriangle/internal/analysis/triangle"
	apperrors "gotriangle/internal/errors"

	"github.com/gin-gonic/gin"
)

// analyzePathRequest mirrors the analyse_triangle tool arguments
type analyzePathRequest struct {
	CSVPath           string   `json:"csv_path" binding:"required"`
	Metric            string   `json:"metric"`
	OutlierZThreshold *float64 `json:"outlier_z_threshold" binding:"omitempty,gte=0"`
	Sheet             string   `json:"sheet"`
}

// handleAnalyzePath analyzes a CSV or XLSX file readable by the server
func (s *Server) handleAnalyzePath(c *gin.Context) {
	var req analyzePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}

	if s.config.Server.DataDir == "" {
		s.fail(c, apperrors.Forbidden("csv_path analysis is disabled; set DATA_DIR to the directory holding triangle files"))
		return
	}

	reader := excel.NewDataReader(s.resolvePath(req.CSVPath), s.readerConfig(req.Sheet), s.logger)
	s.analyze(c, app.AnalysisRequest{
		Source:            reader,
		Metric:            req.Metric,
		OutlierZThreshold: req.OutlierZThreshold,
	})
}

// handleAnalyzeUpload analyzes a multipart-uploaded table in the "file" field
func (s *Server) handleAnalyzeUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Server.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		s.fail(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}

	var threshold *float64
	if raw := c.PostForm("outlier_z_threshold"); raw != "" {
		z, err := strconv.ParseFloat(raw, 64)
		if err != nil || z < 0 {
			s.fail(c, apperrors.InvalidInput("outlier_z_threshold must be a non-negative number"))
			return
		}
		threshold = &z
	}

	s.analyze(c, app.AnalysisRequest{
		Source:            &uploadSource{header: header, config: s.readerConfig(c.PostForm("sheet"))},
		Metric:            c.PostForm("metric"),
		OutlierZThreshold: threshold,
	})
}

func (s *Server) analyze(c *gin.Context, req app.AnalysisRequest) {
	start := time.Now()
	run, err := s.service.Run(c.Request.Context(), req)
	s.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(c, err)
		return
	}

	s.metrics.AnalysesTotal.WithLabelValues("OK").Inc()
	s.metrics.RowsRead.Observe(float64(run.Result.Diagnostics.RowsRead))
	s.metrics.OutliersFlagged.Add(float64(len(run.Result.Outliers)))
	c.JSON(http.StatusOK, run)
}

func (s *Server) fail(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	s.metrics.AnalysesTotal.WithLabelValues(code).Inc()
	s.logger.Warn("request %s failed: %v", c.GetString("request_id"), err)
	c.JSON(statusFor(err), triangle.NewErrorReport(err))
}

func statusFor(err error) int {
	switch {
	case apperrors.GetCode(err) == apperrors.CodeForbidden:
		return http.StatusForbidden
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, domainTriangle.ErrDataSource), errors.Is(err, domainTriangle.ErrSchema):
		return http.StatusUnprocessableEntity
	case apperrors.GetCode(err) == apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resolvePath re-roots the requested path under DataDir
func (s *Server) resolvePath(p string) string {
	return filepath.Join(s.config.Server.DataDir, filepath.Clean(string(filepath.Separator)+p))
}

func (s *Server) readerConfig(sheet string) excel.ReaderConfig {
	if sheet == "" {
		sheet = s.config.Analysis.Sheet
	}
	return excel.ReaderConfig{Sheet: sheet}
}

// uploadSource reads a table from a multipart upload
type uploadSource struct {
	header *multipart.FileHeader
	config excel.ReaderConfig
}

func (u *uploadSource) Describe() string {
	return u.header.Filename
}

func (u *uploadSource) Load(ctx context.Context) (*domainTriangle.Table, error) {
	f, err := u.header.Open()
	if err != nil {
		return nil, domainTriangle.NewDataSourceError(u.header.Filename, err)
	}
	defer f.Close()
	return excel.ReadTable(f, u.header.Filename, "", u.config, nil)
}
