package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"routeengine/internal/domain/models"
	"routeengine/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders a printable journey sheet of search results.
type DocsService struct {
	RequestID string
	Now       func() time.Time
}

func (s DocsService) GenerateJourneySheet(q models.SearchQuery, res models.SearchResult, originName, destName string) ([]byte, string, error) {
	utils.LogEvent(s.RequestID, "docs", "generate_journey_sheet",
		fmt.Sprintf("origin=%s destination=%s options=%d", q.OriginStopID, q.DestinationStopID, len(res.Itineraries)))
	now := utils.NowUTC
	if s.Now != nil {
		now = s.Now
	}
	return buildJourneySheetPDF(q, res, safe(originName, q.OriginStopID), safe(destName, q.DestinationStopID), now())
}

func buildJourneySheetPDF(q models.SearchQuery, res models.SearchResult, originName, destName string, at time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Journey Options", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "JOURNEY OPTIONS")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		fmt.Sprintf("From        : %s", ascii(originName)),
		fmt.Sprintf("To          : %s", ascii(destName)),
		fmt.Sprintf("Preference  : %s", q.Preference),
		fmt.Sprintf("Departing   : %s", safe(utils.FormatClock(q.TimeOfDay), "any time")),
		fmt.Sprintf("Graph ver.  : %d", res.GraphVersion),
		fmt.Sprintf("Generated   : %s", utils.FormatDateTime(at)),
	}
	for _, s := range header {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	if len(res.Itineraries) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		msg := "No route found between these stops."
		if res.EmptyReason != "" {
			msg = fmt.Sprintf("No route found (%s).", res.EmptyReason)
		}
		pdf.MultiCell(0, 6, msg, "", "", false)
	}

	for i, it := range res.Itineraries {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, fmt.Sprintf("Option %d: %s", i+1, ascii(it.Summary)))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 6, fmt.Sprintf("Duration %.0f min | Fare %s | Distance %.1f km | Transfers %d | Confidence %d%%",
			it.TotalDuration, utils.FormatRupee(it.TotalFare), it.TotalDistance, it.TransferCount, it.Confidence))
		pdf.Ln(7)

		for _, d := range it.Directions {
			line := fmt.Sprintf("%d. %s", d.Step, ascii(d.Message))
			if d.Type == "board" {
				line += fmt.Sprintf("  (%.0f min, %s)", d.Duration, utils.FormatRupee(d.Fare))
			}
			pdf.Cell(0, 6, line)
			pdf.Ln(6)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Times and fares are estimates from the published timetable. Confirm with the conductor before boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("JOURNEY_%s_%s.pdf", safeFilenamePart(q.OriginStopID), safeFilenamePart(q.DestinationStopID))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// ascii keeps core PDF fonts happy; they only cover Latin-1.
func ascii(s string) string {
	s = strings.ReplaceAll(s, "→", "->")
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
