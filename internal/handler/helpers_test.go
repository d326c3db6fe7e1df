// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/perfumery/internal/imaging"
	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
	"github.com/olegiv/perfumery/internal/session"
	"github.com/olegiv/perfumery/internal/store"
	"github.com/olegiv/perfumery/web"
)

const testPassword = "secret123"

// testApp is a fully wired router over a temp SQLite database.
type testApp struct {
	db         *sql.DB
	router     http.Handler
	accounts   *service.AccountService
	catalog    *service.CatalogService
	uploadsDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := store.NewDB(store.DialectSQLite, filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db, store.DialectSQLite))

	sm, err := session.New(session.Options{Store: session.StoreMemory, IsDev: true})
	require.NoError(t, err)

	templates, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{TemplatesFS: templates, SessionManager: sm, IsDev: true})
	require.NoError(t, err)

	static, err := fs.Sub(web.Static, "static")
	require.NoError(t, err)

	uploadsDir := t.TempDir()
	accounts := service.NewAccountService(db, store.DialectSQLite)
	catalog := service.NewCatalogService(db, store.DialectSQLite, imaging.NewProcessor(uploadsDir))

	router := NewRouter(RouterConfig{
		DB:             db,
		Renderer:       renderer,
		SessionManager: sm,
		Accounts:       accounts,
		Catalog:        catalog,
		Purchases:      service.NewPurchaseService(db, store.DialectSQLite),
		UploadsDir:     uploadsDir,
		StaticFS:       static,
		MaxUploadBytes: 5 << 20,
		Version:        "test",
	})

	return &testApp{
		db:         db,
		router:     router,
		accounts:   accounts,
		catalog:    catalog,
		uploadsDir: uploadsDir,
	}
}

// createUser registers a user and optionally promotes it to admin.
func (a *testApp) createUser(t *testing.T, username, role string) store.User {
	t.Helper()
	user, err := a.accounts.Register(context.Background(), username, testPassword)
	require.NoError(t, err)
	if role == store.RoleAdmin {
		_, err = a.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, store.RoleAdmin, user.ID)
		require.NoError(t, err)
		user.Role = store.RoleAdmin
	}
	return user
}

func (a *testApp) createPerfume(t *testing.T, name string, price, stock int64) store.Perfume {
	t.Helper()
	p, err := a.catalog.Create(context.Background(), service.PerfumeForm{
		Name:        name,
		Description: name + " description",
		Price:       strconv.FormatInt(price, 10),
		Stock:       strconv.FormatInt(stock, 10),
	}, nil)
	require.NoError(t, err)
	return p
}

// client replays session cookies across requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (a *testApp) client(t *testing.T) *client {
	return &client{t: t, handler: a.router, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// postMultipart posts fields and an optional image file.
func (c *client) postMultipart(path string, fields map[string]string, imageData []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, mw.WriteField(k, v))
	}
	if imageData != nil {
		fw, err := mw.CreateFormFile("image", "upload.png")
		require.NoError(c.t, err)
		_, err = io.Copy(fw, bytes.NewReader(imageData))
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

// login signs the client in and fails the test unless it succeeds.
func (c *client) login(username string) {
	c.t.Helper()
	rec := c.postForm(RouteLogin, url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(c.t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

// pngBytes returns a small encoded PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
