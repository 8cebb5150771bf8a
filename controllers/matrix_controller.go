package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/services"
	"github.com/fadeclub/fadeclub_backend/utils"
	"github.com/fadeclub/fadeclub_backend/websocket"
)

type MatrixController struct {
	db          *mongo.Client
	hub         *websocket.Hub
	placement   *services.PlacementService
	commissions *services.CommissionService
	members     repositories.MemberRepository
	matrix      repositories.MatrixRepository
}

func NewMatrixController(db *mongo.Client, hub *websocket.Hub, placement *services.PlacementService, commissions *services.CommissionService, members repositories.MemberRepository, matrix repositories.MatrixRepository) *MatrixController {
	return &MatrixController{
		db:          db,
		hub:         hub,
		placement:   placement,
		commissions: commissions,
		members:     members,
		matrix:      matrix,
	}
}

// PlaceMember is the manual placement trigger for admins
func (mc *MatrixController) PlaceMember(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var req models.PlacementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	memberID, err := primitive.ObjectIDFromHex(req.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid member ID format",
		})
	}

	var sponsorID *primitive.ObjectID
	if req.SponsorID != "" {
		id, err := primitive.ObjectIDFromHex(req.SponsorID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid sponsor ID format",
			})
		}
		sponsorID = &id
	}

	result, err := mc.ExecutePlacement(ctx, memberID, sponsorID, "manual:"+uuid.NewString())
	if err != nil {
		return mc.placementError(c, memberID, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Member placed successfully",
		Data:    result,
	})
}

// ExecutePlacement runs the placement engine and, for a fresh node, kicks
// off the commission pipeline. Commission computation is best-effort: it
// runs after placement committed and its failures never fail the placement.
func (mc *MatrixController) ExecutePlacement(ctx context.Context, memberID primitive.ObjectID, sponsorID *primitive.ObjectID, eventID string) (*models.PlacementResult, error) {
	// Spillover keeps sponsorship and tree position independent: the sponsor
	// defaults to the referrer even when the node lands on another branch.
	if sponsorID == nil {
		if member, err := mc.members.FindByID(ctx, memberID); err == nil {
			sponsorID = member.ReferredBy
		}
	}

	node, alreadyPlaced, err := mc.placement.Place(ctx, memberID, sponsorID, eventID)
	if err != nil {
		return nil, err
	}

	if !alreadyPlaced {
		go mc.runCommissionPipeline(memberID, sponsorID, node, eventID)
	}

	return &models.PlacementResult{
		NodeID:        node.ID.Hex(),
		Level:         node.Level,
		Slot:          models.SlotName(node.Slot),
		PositionIndex: node.PositionIndex,
		AlreadyPlaced: alreadyPlaced,
	}, nil
}

// runCommissionPipeline computes bonuses for a fresh placement and fans out
// notifications. Runs detached from the request that triggered it.
func (mc *MatrixController) runCommissionPipeline(memberID primitive.ObjectID, sponsorID *primitive.ObjectID, node *models.MatrixNode, eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := mc.commissions.OnMemberPlaced(ctx, memberID, sponsorID, node, eventID)
	if err != nil {
		log.Printf("Commission computation failed for member %s (event %s): %v", memberID.Hex(), eventID, err)
	}

	for _, event := range events {
		beneficiary, err := mc.members.FindByID(ctx, event.BeneficiaryID)
		if err != nil {
			log.Printf("Warning: cannot notify beneficiary %s: %v", event.BeneficiaryID.Hex(), err)
			continue
		}
		utils.NotifyCommissionEarned(mc.db, beneficiary, event)
		// A disconnected dashboard is not an error; the in-app row is persisted.
		_ = mc.hub.NotifyCommissionEarned(event.BeneficiaryID, event)
	}

	if member, err := mc.members.FindByID(ctx, memberID); err == nil {
		utils.NotifyPlacementCompleted(mc.db, member, node)
		mc.hub.NotifyPlacementCompleted(memberID, map[string]interface{}{
			"nodeId":        node.ID.Hex(),
			"level":         node.Level,
			"slot":          models.SlotName(node.Slot),
			"positionIndex": node.PositionIndex,
		})
	}
}

func (mc *MatrixController) placementError(c echo.Context, memberID primitive.ObjectID, err error) error {
	switch {
	case errors.Is(err, models.ErrMatrixFull):
		go utils.NotifyAdminMatrixFull(memberID.Hex())
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Matrix is full; member queued for manual placement",
		})
	case errors.Is(err, models.ErrPlacementContention):
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Placement conflicted with concurrent signups; please retry",
		})
	case errors.Is(err, models.ErrMemberNotFound), errors.Is(err, models.ErrMissingDependency):
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Member or sponsor not found",
		})
	}
	log.Printf("Placement failed for member %s: %v", memberID.Hex(), err)
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Could not complete placement, support has been notified",
	})
}

// GetMyPosition returns the authenticated member's matrix node
func (mc *MatrixController) GetMyPosition(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	memberID, err := utils.GetMemberIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid token",
		})
	}

	node, err := mc.matrix.FindByOwner(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "You have not been placed in the matrix yet",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matrix position retrieved successfully",
		Data: models.PlacementResult{
			NodeID:        node.ID.Hex(),
			Level:         node.Level,
			Slot:          models.SlotName(node.Slot),
			PositionIndex: node.PositionIndex,
		},
	})
}

// GetDownline returns the authenticated member's subtree up to the requested
// depth (default 3 levels below the member's own node)
func (mc *MatrixController) GetDownline(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	memberID, err := utils.GetMemberIDFromToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid token",
		})
	}

	depth := 3
	if depthParam := c.QueryParam("depth"); depthParam != "" {
		if parsed, err := strconv.Atoi(depthParam); err == nil && parsed >= 1 && parsed <= 8 {
			depth = parsed
		}
	}

	root, err := mc.matrix.FindByOwner(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "You have not been placed in the matrix yet",
		})
	}

	tree, err := mc.buildDownline(ctx, root, depth)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load downline",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Downline retrieved successfully",
		Data:    tree,
	})
}

func (mc *MatrixController) buildDownline(ctx context.Context, node *models.MatrixNode, depth int) (*models.DownlineNode, error) {
	entry := &models.DownlineNode{
		NodeID:        node.ID.Hex(),
		MemberID:      node.OwnerID.Hex(),
		Level:         node.Level,
		Slot:          models.SlotName(node.Slot),
		PositionIndex: node.PositionIndex,
	}
	if owner, err := mc.members.FindByID(ctx, node.OwnerID); err == nil {
		entry.FullName = owner.FullName
	}
	if depth <= 0 {
		return entry, nil
	}

	childIDs := node.ChildIDs()
	children, err := mc.matrix.FindByIDs(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.MatrixNode, len(children))
	for _, child := range children {
		byID[child.ID] = child
	}
	for _, id := range childIDs {
		child, ok := byID[id]
		if !ok {
			continue
		}
		childEntry, err := mc.buildDownline(ctx, child, depth-1)
		if err != nil {
			return nil, err
		}
		entry.Children = append(entry.Children, childEntry)
	}
	return entry, nil
}
