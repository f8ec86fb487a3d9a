package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/crm-pro/internal/domain"
	campaignsvc "github.com/acme/crm-pro/internal/service/campaign"
)

type campaignRequest struct {
	Segment  domain.Segment `json:"segment"`
	Template string         `json:"template"`
}

type runResponse struct {
	ID           uuid.UUID            `json:"id"`
	Segment      domain.Segment       `json:"segment"`
	Template     string               `json:"template"`
	RequestedBy  string               `json:"requested_by"`
	State        domain.RunState      `json:"state"`
	Total        int                  `json:"total"`
	Sent         int                  `json:"sent"`
	SuccessCount int                  `json:"success_count"`
	ErrorCount   int                  `json:"error_count"`
	Error        string               `json:"error,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	Estimate     campaignsvc.Estimate `json:"estimate"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

type listDeliveriesResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
	NextPage   string            `json:"next_page_token,omitempty"`
}

func (h *HandlerSet) previewCampaign(ctx *fiber.Ctx) error {
	var req campaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	preview, err := h.campaigns.Preview(ctx.UserContext(), req.Segment, req.Template)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(preview)
}

func (h *HandlerSet) startCampaign(ctx *fiber.Ctx) error {
	var req campaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := campaignsvc.StartInput{Segment: req.Segment, Template: req.Template}
	if user := currentUser(ctx); user != nil {
		input.RequestedBy = user.Username
	}

	run, err := h.campaigns.Start(ctx.UserContext(), input)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusAccepted).JSON(h.toRunResponse(run))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	var afterID *uuid.UUID
	if afterStr := ctx.Query("after_id"); afterStr != "" {
		id, err := uuid.Parse(afterStr)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid after_id")
		}
		afterID = &id
	}

	runs, err := h.campaigns.History(ctx.UserContext(), afterID, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, h.toRunResponse(run))
	}
	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	status, err := h.campaigns.Status(ctx.UserContext(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"run":      h.toRunResponse(status.Run),
		"progress": status.Progress,
	})
}

func (h *HandlerSet) cancelCampaign(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	if err := h.campaigns.Cancel(ctx.UserContext(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusAccepted)
}

func (h *HandlerSet) listDeliveries(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))

	deliveries, next, err := h.campaigns.Deliveries(ctx.UserContext(), id, limit, ctx.Query("page_token"))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(listDeliveriesResponse{Deliveries: deliveries, NextPage: next})
}

func (h *HandlerSet) toRunResponse(run *domain.CampaignRun) runResponse {
	return runResponse{
		ID:           run.ID,
		Segment:      run.Segment,
		Template:     run.Template,
		RequestedBy:  run.RequestedBy,
		State:        run.State,
		Total:        run.Total,
		Sent:         run.Sent,
		SuccessCount: run.SuccessCount,
		ErrorCount:   run.ErrorCount,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		Estimate:     h.campaigns.Estimate(run.Total),
	}
}
