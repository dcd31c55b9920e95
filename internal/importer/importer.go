package importer

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

type Result struct {
	BatchID  string          `json:"batchId"`
	DataType domain.DataType `json:"dataType"`
	Format   domain.Format   `json:"format"`
	Accepted int             `json:"accepted"`
	Rejected int             `json:"rejected"`
	Errors   []RowError      `json:"errors"`
}

// Importer validates and normalizes batches and writes accepted rows to the store.
// Batches of one data type are serialized; different types run concurrently.
type Importer struct {
	Store    repositories.CanonicalStore
	validate *validator.Validate
	locks    map[domain.DataType]*sync.Mutex
}

func New(store repositories.CanonicalStore) *Importer {
	locks := make(map[domain.DataType]*sync.Mutex, len(domain.AllDataTypes))
	for _, dt := range domain.AllDataTypes {
		locks[dt] = &sync.Mutex{}
	}
	return &Importer{Store: store, validate: newValidator(), locks: locks}
}

func (im *Importer) Import(ctx context.Context, dataType domain.DataType, format domain.Format, payload []byte) (Result, error) {
	lock, ok := im.locks[dataType]
	if !ok {
		return Result{}, domain.ValidationError{Field: "dataType", Msg: "must be one of stops, routes, routeStops"}
	}
	recs, err := parseRecords(format, dataType, payload)
	if err != nil {
		return Result{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	res := Result{BatchID: uuid.NewString(), DataType: dataType, Format: format, Errors: []RowError{}}
	reject := func(idx int, reason string) {
		res.Rejected++
		res.Errors = append(res.Errors, RowError{RowIndex: idx, Reason: reason})
	}

	switch dataType {
	case domain.DataTypeStops:
		var accepted []models.Stop
		seen := map[string]int{}
		for _, rec := range recs {
			if rec.parseErr != "" {
				reject(rec.index, rec.parseErr)
				continue
			}
			row := stopRowFrom(rec)
			if err := im.validate.Struct(row); err != nil {
				reject(rec.index, describeValidation(err))
				continue
			}
			if first, dup := seen[row.StopCode]; dup {
				reject(rec.index, fmt.Sprintf("duplicate stopCode %s (first seen in row %d)", row.StopCode, first))
				continue
			}
			st, err := row.toModel()
			if err != nil {
				reject(rec.index, err.Error())
				continue
			}
			seen[row.StopCode] = rec.index
			accepted = append(accepted, st)
		}
		if err := im.Store.UpsertStops(ctx, accepted); err != nil {
			return Result{}, domain.InternalError{Msg: "failed to persist stops", Err: err}
		}
		res.Accepted = len(accepted)

	case domain.DataTypeRoutes:
		var accepted []models.Route
		seen := map[string]int{}
		for _, rec := range recs {
			if rec.parseErr != "" {
				reject(rec.index, rec.parseErr)
				continue
			}
			row := routeRowFrom(rec)
			if err := im.validate.Struct(row); err != nil {
				reject(rec.index, describeValidation(err))
				continue
			}
			if first, dup := seen[row.RouteNumber]; dup {
				reject(rec.index, fmt.Sprintf("duplicate routeNumber %s (first seen in row %d)", row.RouteNumber, first))
				continue
			}
			r, err := row.toModel()
			if err != nil {
				reject(rec.index, err.Error())
				continue
			}
			seen[row.RouteNumber] = rec.index
			accepted = append(accepted, r)
		}
		if err := im.Store.UpsertRoutes(ctx, accepted); err != nil {
			return Result{}, domain.InternalError{Msg: "failed to persist routes", Err: err}
		}
		res.Accepted = len(accepted)

	case domain.DataTypeRouteStops:
		var accepted []models.RouteStop
		seen := map[string]int{}
		for _, rec := range recs {
			if rec.parseErr != "" {
				reject(rec.index, rec.parseErr)
				continue
			}
			row := routeStopRowFrom(rec)
			if err := im.validate.Struct(row); err != nil {
				reject(rec.index, describeValidation(err))
				continue
			}
			rs, err := row.toModel()
			if err != nil {
				reject(rec.index, err.Error())
				continue
			}
			key := rs.RouteNumber + "#" + strconv.Itoa(rs.StopSequence)
			if first, dup := seen[key]; dup {
				reject(rec.index, fmt.Sprintf("duplicate stopSequence %d for route %s (first seen in row %d)", rs.StopSequence, rs.RouteNumber, first))
				continue
			}
			seen[key] = rec.index
			accepted = append(accepted, rs)
		}
		if err := im.Store.ReplaceRouteStops(ctx, accepted); err != nil {
			return Result{}, domain.InternalError{Msg: "failed to persist route stops", Err: err}
		}
		res.Accepted = len(accepted)
	}

	return res, nil
}
