package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/crm-pro/internal/service/suggest"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

type credentialResponse struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Configured bool   `json:"configured"`
}

type credentialRequest struct {
	Value string `json:"value"`
}

type suggestResponse struct {
	Message string   `json:"message"`
	Kinds   []string `json:"kinds"`
}

type normalizeResponse struct {
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
	Display    string `json:"display"`
	Valid      bool   `json:"valid"`
	Region     string `json:"region,omitempty"`
}

func (h *HandlerSet) listCredentials(ctx *fiber.Ctx) error {
	creds, err := h.credentials.All(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}

	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resp := make([]credentialResponse, 0, len(keys))
	for _, k := range keys {
		v := strings.TrimSpace(creds[k])
		resp = append(resp, credentialResponse{Key: k, Value: logger.RedactSecret(v), Configured: v != ""})
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"credentials": resp})
}

func (h *HandlerSet) saveCredential(ctx *fiber.Ctx) error {
	key := strings.TrimSpace(ctx.Params("key"))
	if key == "" {
		return fiber.NewError(http.StatusBadRequest, "credential key is required")
	}
	var req credentialRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.credentials.Save(ctx.UserContext(), key, strings.TrimSpace(req.Value)); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) getTeam(ctx *fiber.Ctx) error {
	overview, err := h.team.Overview(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(overview)
}

func (h *HandlerSet) suggestMessage(ctx *fiber.Ctx) error {
	var req suggest.Request
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	msg, err := h.suggest.Suggest(req)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(suggestResponse{Message: msg, Kinds: suggest.Kinds()})
}

func (h *HandlerSet) normalizePhone(ctx *fiber.Ctx) error {
	raw := ctx.Query("number")
	if raw == "" {
		return fiber.NewError(http.StatusBadRequest, "number is required")
	}
	cc := ctx.Query("country", h.countryCode)

	normalized := phone.Normalize(raw, cc)
	return ctx.Status(http.StatusOK).JSON(normalizeResponse{
		Input:      raw,
		Normalized: normalized,
		Display:    phone.DisplayNormalized(normalized),
		Valid:      phone.IsValidNormalized(normalized),
		Region:     phone.Region(normalized),
	})
}
