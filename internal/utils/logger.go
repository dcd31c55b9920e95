package utils

import (
	"errors"
	"log"
	"strings"
)

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	req := strings.TrimSpace(requestID)
	if req == "" {
		req = "-"
	}
	log.Printf("[%s] action=%s request_id=%s msg=%s", strings.ToUpper(module), action, req, message)
}

// LogError logs err together with its innermost cause.
func LogError(requestID, module, action string, err error) {
	if err == nil {
		return
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	msg := err.Error()
	if root != err {
		msg += " cause=" + root.Error()
	}
	LogEvent(requestID, module, action, msg)
}
