package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/acme/crm-pro/internal/domain"
)

type clientRequest struct {
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	City    string          `json:"city"`
	Address string          `json:"address"`
	Items   string          `json:"items"`
	Qty     int             `json:"qty"`
	Price   decimal.Decimal `json:"price"`
	Status  string          `json:"status"`
	Note    string          `json:"note"`
	Date    string          `json:"date"`
}

func (r clientRequest) toDomain() domain.Client {
	return domain.Client{
		Name:    r.Name,
		Phone:   r.Phone,
		City:    r.City,
		Address: r.Address,
		Items:   r.Items,
		Qty:     r.Qty,
		Price:   r.Price,
		Status:  domain.OrderStatus(r.Status),
		Note:    r.Note,
		Date:    r.Date,
	}
}

type listClientsResponse struct {
	Clients []domain.Client `json:"clients"`
	Total   int             `json:"total"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *HandlerSet) listClients(ctx *fiber.Ctx) error {
	clients, err := h.clients.List(ctx.UserContext(), ctx.Query("q"))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(listClientsResponse{Clients: clients, Total: len(clients)})
}

func (h *HandlerSet) createClient(ctx *fiber.Ctx) error {
	var req clientRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.clients.Create(ctx.UserContext(), req.toDomain())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusCreated).JSON(created)
}

func (h *HandlerSet) updateClient(ctx *fiber.Ctx) error {
	index, err := parseIndex(ctx)
	if err != nil {
		return err
	}
	var req clientRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.clients.Update(ctx.UserContext(), index, req.toDomain())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(updated)
}

func (h *HandlerSet) updateClientStatus(ctx *fiber.Ctx) error {
	index, err := parseIndex(ctx)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.clients.UpdateStatus(ctx.UserContext(), index, req.Status)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(updated)
}

func (h *HandlerSet) deleteClient(ctx *fiber.Ctx) error {
	index, err := parseIndex(ctx)
	if err != nil {
		return err
	}
	if err := h.clients.Delete(ctx.UserContext(), index); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func parseIndex(ctx *fiber.Ctx) (int, error) {
	index, err := strconv.Atoi(ctx.Params("index"))
	if err != nil || index < 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid client index")
	}
	return index, nil
}
