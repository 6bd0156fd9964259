// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package introspect

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snapcore/dlsched/logger"
)

// ResponseType is the response type
type ResponseType string

const (
	ResponseTypeSync  ResponseType = "sync"
	ResponseTypeError ResponseType = "error"
)

// Response knows how to serve itself.
type Response interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type resp struct {
	Type   ResponseType `json:"type"`
	Status int          `json:"status-code"`
	Result interface{}  `json:"result"`
}

func (r *resp) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":        r.Type,
		"status":      http.StatusText(r.Status),
		"status-code": r.Status,
		"result":      &r.Result,
	})
}

func (r *resp) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := r.Status
	bs, err := r.MarshalJSON()
	if err != nil {
		logger.Noticef("cannot marshal %#v to JSON: %v", *r, err)
		bs = nil
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bs)
}

type errorResult struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SyncResponse builds a "sync" response from the given result.
func SyncResponse(result interface{}) Response {
	if err, ok := result.(error); ok {
		return InternalError("%v", err)
	}
	return &resp{
		Type:   ResponseTypeSync,
		Status: http.StatusOK,
		Result: result,
	}
}

// ErrorResponseFunc builds an "error" response with a fixed status.
type ErrorResponseFunc func(format string, v ...interface{}) Response

// ErrorResponse returns a builder of "error" responses of the given
// status.
func ErrorResponse(status int, kind string) ErrorResponseFunc {
	return func(format string, v ...interface{}) Response {
		msg := fmt.Sprintf(format, v...)
		if status >= http.StatusInternalServerError {
			logger.Noticef("%s", msg)
		}
		return &resp{
			Type:   ResponseTypeError,
			Status: status,
			Result: &errorResult{Message: msg, Kind: kind},
		}
	}
}

// standard error responses
var (
	NotFound      = ErrorResponse(http.StatusNotFound, "not-found")
	BadRequest    = ErrorResponse(http.StatusBadRequest, "bad-request")
	BadMethod     = ErrorResponse(http.StatusMethodNotAllowed, "bad-method")
	InternalError = ErrorResponse(http.StatusInternalServerError, "")
)
