// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/olegiv/perfumery/internal/middleware"
	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
	"github.com/olegiv/perfumery/internal/store"
)

// purchaseForm is echoed back into the buy form.
type purchaseForm struct {
	Quantity    string
	Recipient   string
	Address     string
	PaymentNote string
}

// BuyHandler serves the purchase flow.
type BuyHandler struct {
	catalog   *service.CatalogService
	purchases *service.PurchaseService
	renderer  *render.Renderer
}

// NewBuyHandler creates a new BuyHandler.
func NewBuyHandler(catalog *service.CatalogService, purchases *service.PurchaseService, renderer *render.Renderer) *BuyHandler {
	return &BuyHandler{catalog: catalog, purchases: purchases, renderer: renderer}
}

// Form renders the buy page for one perfume.
func (h *BuyHandler) Form(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, msgPerfumeNotFound)
	if !ok {
		return
	}

	perfume, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		http.Error(w, msgPerfumeNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to load perfume", "perfume_id", id, "error", err)
		return
	}

	h.renderBuy(w, r, http.StatusOK, perfume, purchaseForm{Quantity: "1"}, "")
}

// Purchase handles the buy form submission.
func (h *BuyHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, msgPerfumeNotFound)
	if !ok {
		return
	}

	form := purchaseForm{
		Quantity:    r.PostFormValue("quantity"),
		Recipient:   r.PostFormValue("recipient"),
		Address:     r.PostFormValue("address"),
		PaymentNote: r.PostFormValue("payment_note"),
	}
	quantity := service.ParseQuantity(form.Quantity)

	receipt, err := h.purchases.Purchase(r.Context(), service.PurchaseRequest{
		PerfumeID:   id,
		Quantity:    quantity,
		Recipient:   form.Recipient,
		Address:     form.Address,
		PaymentNote: form.PaymentNote,
		UserID:      middleware.GetUserID(r),
	})
	if err != nil {
		var stockErr *service.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			form.Quantity = strconv.FormatInt(quantity, 10)
			h.renderBuy(w, r, http.StatusBadRequest, stockErr.Perfume, form, msgInsufficientStock)
		case errors.Is(err, service.ErrNotFound):
			http.Error(w, msgPerfumeNotFound, http.StatusNotFound)
		default:
			// Purchase has already logged the cause.
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	renderPage(w, r, h.renderer, http.StatusOK, tmplBuySuccess, render.TemplateData{
		Title: "Purchase complete",
		Data:  receipt,
	})
}

func (h *BuyHandler) renderBuy(w http.ResponseWriter, r *http.Request, status int, perfume store.Perfume, form purchaseForm, message string) {
	renderPage(w, r, h.renderer, status, tmplBuy, render.TemplateData{
		Title: "Buy " + perfume.Name,
		Data:  perfume,
		Form:  form,
		Error: message,
	})
}
