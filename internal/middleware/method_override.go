// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
)

// Method override inputs.
const (
	MethodOverrideField  = "_method"
	MethodOverrideHeader = "X-HTTP-Method-Override"
)

// multipartMemory is how much of a multipart body is kept in memory; the
// rest spills to temp files.
const multipartMemory = 8 << 20

// MethodOverride lets HTML forms issue PUT, PATCH and DELETE by posting a
// _method field (or the X-HTTP-Method-Override header). Only POST requests
// are rewritten and only to those three methods. Bodies are limited to
// maxBodyBytes before the form is parsed.
func MethodOverride(maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			method := r.Header.Get(MethodOverrideHeader)
			if method == "" {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
						return
					}
					slog.Debug("unparseable form body", "path", r.URL.Path, "error", err)
					http.Error(w, "Invalid form submission", http.StatusBadRequest)
					return
				}
				method = r.PostFormValue(MethodOverrideField)
			}

			switch m := strings.ToUpper(strings.TrimSpace(method)); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}

			next.ServeHTTP(w, r)
		})
	}
}

// parseForm parses urlencoded and multipart bodies; other content types
// carry no form and are left alone.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return r.ParseMultipartForm(multipartMemory)
	case "application/x-www-form-urlencoded":
		return r.ParseForm()
	default:
		return nil
	}
}
