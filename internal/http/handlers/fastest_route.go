package handlers

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"routeengine/internal/config"
	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/http/middleware"
	"routeengine/internal/services"
	"routeengine/internal/utils"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadBytes = 10 << 20

// FastestRoute serves /api/fastest-route. The service values are templates;
// each request gets a copy stamped with its request ID.
type FastestRoute struct {
	Graph  services.GraphService
	Search services.SearchService
	Import services.ImportService
	Status services.StatusService
	Cache  services.CacheService
	Docs   services.DocsService
	Stops  services.StopService
	Engine config.Engine

	MaxUploadBytes int64
}

func (h *FastestRoute) GraphStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.Status.GraphStatus()})
}

func (h *FastestRoute) BuildGraph(c *gin.Context) {
	svc := h.Graph
	svc.RequestID = middleware.GetRequestID(c)
	utils.LogEvent(svc.RequestID, "graph", "build_requested", "user_id="+requestContext(c).UserID)

	report, err := svc.Rebuild(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "graph built",
		"data":    report,
	})
}

func (h *FastestRoute) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.Status.CacheStats()})
}

func (h *FastestRoute) ClearCache(c *gin.Context) {
	svc := h.Cache
	svc.RequestID = middleware.GetRequestID(c)
	gen := svc.Clear()
	utils.LogEvent(svc.RequestID, "cache", "clear_requested", "user_id="+requestContext(c).UserID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "cache cleared",
		"data":    gin.H{"size": h.Status.CacheStats().Size, "generation": gen},
	})
}

// ImportData accepts a multipart upload with fields file, dataType and format.
// format falls back to the file extension.
func (h *FastestRoute) ImportData(c *gin.Context) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "file is required", gin.H{"field": "file"})
		return
	}
	dataType := formValue(c, "dataType")
	if dataType == "" {
		respondError(c, http.StatusBadRequest, "validation_error", "dataType is required", gin.H{"field": "dataType"})
		return
	}
	format := formValue(c, "format")
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", gin.H{"field": "file"})
		return
	}
	defer f.Close()
	payload, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", gin.H{"field": "file"})
		return
	}

	svc := h.Import
	svc.RequestID = middleware.GetRequestID(c)
	res, err := svc.Import(c.Request.Context(), dataType, format, payload)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%d rows imported, %d rejected", res.Accepted, res.Rejected),
		"data":    res,
	})
}

type optionsQuery struct {
	OriginStopID      string `form:"originStopId"`
	DestinationStopID string `form:"destinationStopId"`
	Preference        string `form:"preference"`
	TimeOfDay         string `form:"timeOfDay"`
	MaxOptions        string `form:"maxOptions"`
}

// parseQuery reads the search parameters. A non-empty fixed preference
// replaces whatever the client sent.
func (h *FastestRoute) parseQuery(c *gin.Context, fixed models.Preference) (models.SearchQuery, error) {
	var raw optionsQuery
	if err := c.ShouldBindQuery(&raw); err != nil {
		return models.SearchQuery{}, domain.ValidationError{Msg: "invalid query", Err: err}
	}

	q := models.SearchQuery{
		OriginStopID:      strings.TrimSpace(raw.OriginStopID),
		DestinationStopID: strings.TrimSpace(raw.DestinationStopID),
		TimeOfDay:         -1,
		MaxOptions:        h.Engine.DefaultMaxOptions,
	}
	if q.OriginStopID == "" {
		return q, domain.ValidationError{Field: "originStopId", Msg: "is required"}
	}
	if q.DestinationStopID == "" {
		return q, domain.ValidationError{Field: "destinationStopId", Msg: "is required"}
	}
	if q.OriginStopID == q.DestinationStopID {
		return q, domain.ValidationError{Field: "destinationStopId", Msg: "must differ from originStopId"}
	}

	if fixed != "" {
		q.Preference = fixed
	} else {
		pref, err := models.ParsePreference(raw.Preference)
		if err != nil {
			return q, err
		}
		q.Preference = pref
	}

	if t := strings.TrimSpace(raw.TimeOfDay); t != "" {
		minute, err := utils.ParseClock(t)
		if err != nil {
			return q, domain.ValidationError{Field: "timeOfDay", Msg: "must be HH:MM", Err: err}
		}
		q.TimeOfDay = minute
	}

	if m := strings.TrimSpace(raw.MaxOptions); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > h.Engine.MaxOptionsLimit {
			return q, domain.ValidationError{Field: "maxOptions", Msg: fmt.Sprintf("must be an integer between 1 and %d", h.Engine.MaxOptionsLimit)}
		}
		q.MaxOptions = n
	}
	if q.MaxOptions <= 0 {
		q.MaxOptions = 3
	}
	return q, nil
}

func (h *FastestRoute) search(c *gin.Context, fixed models.Preference) (models.SearchQuery, models.SearchResult, bool, bool) {
	q, err := h.parseQuery(c, fixed)
	if err != nil {
		RespondDomainError(c, err)
		return q, models.SearchResult{}, false, false
	}
	return h.run(c, q)
}

func (h *FastestRoute) run(c *gin.Context, q models.SearchQuery) (models.SearchQuery, models.SearchResult, bool, bool) {
	svc := h.Search
	svc.RequestID = middleware.GetRequestID(c)
	res, cached, err := svc.Search(c.Request.Context(), q)
	if err != nil {
		RespondDomainError(c, err)
		return q, models.SearchResult{}, false, false
	}
	if res.Itineraries == nil {
		res.Itineraries = []models.Itinerary{}
	}
	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	return q, res, cached, true
}

func optionsBody(q models.SearchQuery, res models.SearchResult, cached bool) gin.H {
	return gin.H{
		"success":      true,
		"routes":       res.Itineraries,
		"totalOptions": len(res.Itineraries),
		"emptyReason":  res.EmptyReason,
		"preference":   q.Preference,
		"timeOfDay":    utils.FormatClock(q.TimeOfDay),
		"graphVersion": res.GraphVersion,
		"cached":       cached,
	}
}

// Options answers GET /options with up to maxOptions ranked itineraries.
func (h *FastestRoute) Options(c *gin.Context) {
	q, res, cached, ok := h.search(c, "")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, optionsBody(q, res, cached))
}

// Cheapest is GET /cheapest: options ranked by fare.
func (h *FastestRoute) Cheapest(c *gin.Context) {
	q, res, cached, ok := h.search(c, models.PreferFare)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, optionsBody(q, res, cached))
}

// LeastTransfers is GET /least-transfers: options ranked by transfer count.
func (h *FastestRoute) LeastTransfers(c *gin.Context) {
	q, res, cached, ok := h.search(c, models.PreferTransfers)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, optionsBody(q, res, cached))
}

func stopBody(st models.Stop) gin.H {
	return gin.H{
		"stopId": st.ID,
		"name":   st.Name,
		"code":   st.Code,
		"coordinates": gin.H{
			"latitude":  st.Lat,
			"longitude": st.Lng,
		},
	}
}

// Fastest is GET /fastest-route. Unlike /options, unknown stops are a 404 and
// the response describes both endpoints.
func (h *FastestRoute) Fastest(c *gin.Context) {
	q, err := h.parseQuery(c, "")
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	origin, err := h.Stops.Stop(q.OriginStopID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	dest, err := h.Stops.Stop(q.DestinationStopID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	q, res, cached, ok := h.run(c, q)
	if !ok {
		return
	}
	body := optionsBody(q, res, cached)
	body["origin"] = stopBody(origin)
	body["destination"] = stopBody(dest)
	c.JSON(http.StatusOK, body)
}

// Nearby is GET /nearby?latitude&longitude&radius. radius is in km, 0.1 to 10, default 1.
func (h *FastestRoute) Nearby(c *gin.Context) {
	lat, err := floatParam(c, "latitude", -90, 90, nil)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	lng, err := floatParam(c, "longitude", -180, 180, nil)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	defaultRadius := 1.0
	radius, err := floatParam(c, "radius", 0.1, 10, &defaultRadius)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	svc := h.Stops
	svc.RequestID = middleware.GetRequestID(c)
	stops, err := svc.Nearby(lat, lng, radius)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"location": gin.H{"latitude": lat, "longitude": lng},
			"radius":   radius,
			"stops":    stops,
		},
	})
}

// floatParam reads a query float within [lo, hi]. A nil def makes it required.
func floatParam(c *gin.Context, key string, lo, hi float64, def *float64) (float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		if def != nil {
			return *def, nil
		}
		return 0, domain.ValidationError{Field: key, Msg: "is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < lo || v > hi {
		return 0, domain.ValidationError{Field: key, Msg: fmt.Sprintf("must be a number between %g and %g", lo, hi)}
	}
	return v, nil
}

// OptionsPDF renders the same search as a printable journey sheet.
func (h *FastestRoute) OptionsPDF(c *gin.Context) {
	q, res, _, ok := h.search(c, "")
	if !ok {
		return
	}
	originName, destName := q.OriginStopID, q.DestinationStopID
	if snap := h.Search.Holder.Current(); snap != nil {
		originName, destName = snap.StopName(q.OriginStopID), snap.StopName(q.DestinationStopID)
	}

	svc := h.Docs
	svc.RequestID = middleware.GetRequestID(c)
	pdf, filename, err := svc.GenerateJourneySheet(q, res, originName, destName)
	if err != nil {
		RespondDomainError(c, domain.InternalError{Msg: "could not render journey sheet", Err: err})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
