package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

type CatalogHandler struct {
	Catalog *orders.Catalog
	Log     *zap.Logger
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

type adjustStockResp struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Post("/users", h.createUser)
	r.Get("/users/{id}", h.getUser)
	r.Patch("/users/{id}", h.updateUser)
	r.Delete("/users/{id}", h.deleteUser)

	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Patch("/products/{id}", h.updateProduct)
	r.Post("/products/{id}/stock", h.adjustStock)
}

func (h *CatalogHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req orders.NewUser
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Catalog.CreateUser(ctx, req)
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *CatalogHandler) getUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Catalog.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *CatalogHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req orders.UserPatch
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Catalog.UpdateUser(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *CatalogHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Catalog.DeleteUser(ctx, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req orders.NewProduct
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.CreateProduct(ctx, req)
	if err != nil {
		h.fail(w, r, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req orders.ProductPatch
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.UpdateProduct(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	stock, err := h.Catalog.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		h.fail(w, r, "adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, adjustStockResp{ProductID: id, Stock: stock})
}

func (h *CatalogHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logFailure(h.Log, r, op, err)
	writeError(w, err)
}

func logFailure(log *zap.Logger, r *http.Request, op string, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	if statusFor(err) == http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Info("request rejected", fields...)
}
