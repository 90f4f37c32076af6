package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parksavvy/internal/ledger"
)

// PointsService is the subset of *ledger.Service used by the points API.
type PointsService interface {
    GetBalance(ctx context.Context, userID uint64) (ledger.Balance, error)
    Debit(ctx context.Context, userID uint64, action string) (ledger.DebitResult, error)
}

// PointsHandler serves /v1/points.
type PointsHandler struct {
    Ledger PointsService
}

func NewPointsHandler(l PointsService) *PointsHandler { return &PointsHandler{Ledger: l} }

// GetPoints handles GET /v1/points.
func (h *PointsHandler) GetPoints(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    bal, err := h.Ledger.GetBalance(c.Request().Context(), uid)
    if err != nil {
        return ledgerError(c, err)
    }
    return c.JSON(http.StatusOK, bal)
}

type useReq struct {
    Action string `json:"action"`
}

// UsePoints handles POST /v1/points/use {action}.  Failures never carry
// updatedPoints.
func (h *PointsHandler) UsePoints(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req useReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Action = strings.TrimSpace(req.Action)
    if req.Action == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "action required"})
    }
    res, err := h.Ledger.Debit(c.Request().Context(), uid, req.Action)
    if err != nil {
        return ledgerError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// ledgerError maps ledger errors onto status codes.
func ledgerError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, ledger.ErrUnknownAction):
        return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unknown action", "message": "unrecognized action"})
    case errors.Is(err, ledger.ErrInsufficientPoints):
        return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "insufficient points", "message": "insufficient points, cannot use this feature"})
    case errors.Is(err, ledger.ErrUserNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "user not found"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "ledger update failed"})
}
