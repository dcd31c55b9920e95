package services

import (
	"context"
	"fmt"

	"routeengine/internal/domain"
	"routeengine/internal/importer"
	"routeengine/internal/metrics"
	"routeengine/internal/utils"
)

type ImportService struct {
	Importer  *importer.Importer
	RequestID string
}

// Import parses the raw dataType/format values and hands the batch to the pipeline.
// The graph is not rebuilt; callers trigger build-graph separately.
func (s ImportService) Import(ctx context.Context, dataType, format string, payload []byte) (importer.Result, error) {
	dt, err := domain.ParseDataType(dataType)
	if err != nil {
		return importer.Result{}, err
	}
	f, err := domain.ParseFormat(format)
	if err != nil {
		return importer.Result{}, err
	}

	res, err := s.Importer.Import(ctx, dt, f, payload)
	if err != nil {
		utils.LogEvent(s.RequestID, "import", "failed", fmt.Sprintf("data_type=%s format=%s err=%v", dt, f, err))
		return importer.Result{}, err
	}

	metrics.ImportRows.WithLabelValues(string(dt), "accepted").Add(float64(res.Accepted))
	metrics.ImportRows.WithLabelValues(string(dt), "rejected").Add(float64(res.Rejected))
	utils.LogEvent(s.RequestID, "import", "batch_done", fmt.Sprintf("batch_id=%s data_type=%s accepted=%d rejected=%d",
		res.BatchID, dt, res.Accepted, res.Rejected))
	return res, nil
}
