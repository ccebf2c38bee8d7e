package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/services"
	"auction-system/store"
)

const defaultListingImage = "https://upload.wikimedia.org/wikipedia/commons/thumb/a/ac/No_image_available.svg/1024px-No_image_available.svg.png"

var (
	minStartBid = decimal.RequireFromString("0.01")
	maxStartBid = decimal.RequireFromString("99999.00")
)

// ListingHandler is the HTTP surface that produces the listing rows the
// live rooms operate on.
type ListingHandler struct {
	store     store.Store
	scheduler *services.Scheduler
	logger    *slog.Logger
}

func NewListingHandler(st store.Store, scheduler *services.Scheduler, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{store: st, scheduler: scheduler, logger: logger}
}

type createListingRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	StartBid    string `json:"start_bid"`
	ExpireHours int    `json:"expire_hours"`
}

func (h *ListingHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req createListingRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Name == "" || len(req.Name) > 32 {
		return apis.NewBadRequestError("Name for listing is required and must be less than 33 characters", nil)
	}
	if len(req.Description) > 150 {
		return apis.NewBadRequestError("Description length must be less than 151", nil)
	}
	if req.Category == "" {
		return apis.NewBadRequestError("You didn't select a category", nil)
	}
	if req.ExpireHours < 1 {
		return apis.NewBadRequestError("Expire time must be at least one hour", nil)
	}

	startBid, err := decimal.NewFromString(req.StartBid)
	if err != nil || startBid.LessThan(minStartBid) || startBid.GreaterThan(maxStartBid) {
		return apis.NewBadRequestError("Listing Start Price must be bigger than 0.01 and less than 99999.00", nil)
	}

	image := req.ImageURL
	if image == "" {
		image = defaultListingImage
	}

	now := time.Now().UTC()
	listing := &models.Listing{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    image,
		OwnerID:     e.Auth.Id,
		StartBid:    startBid.Round(2),
		EndDate:     now.Add(time.Duration(req.ExpireHours) * time.Hour),
		Active:      true,
	}
	if err := h.store.CreateListing(e.Request.Context(), listing); err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create listing", err)
	}

	// A lost schedule entry is recovered by the reconciliation sweep, so
	// the listing is still returned on error here.
	if err := h.scheduler.Schedule(e.Request.Context(), listing.ID, listing.EndDate); err != nil {
		h.logger.Error("schedule registration failed", "listing", listing.ID, "error", err)
	}

	return e.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) Detail(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	listingID := e.Request.PathValue("listingId")

	listing, err := h.store.GetListing(ctx, listingID)
	if err != nil {
		return apis.NewNotFoundError("Listing not found", err)
	}

	bids, err := h.store.BidsForListing(ctx, listingID)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load bids", err)
	}
	comments, err := h.store.CommentsForListing(ctx, listingID)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load comments", err)
	}

	currentBid := listing.StartBid
	if top, err := h.store.HighestBid(ctx, listingID); err == nil {
		currentBid = top.Value
	} else if !errors.Is(err, marketerrors.ErrNoBids) {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load bids", err)
	}

	ownerName, err := h.store.GetUsername(ctx, listing.OwnerID)
	if err != nil {
		h.logger.Warn("owner lookup failed", "listing", listingID, "error", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"listing":     listing,
		"owner_name":  ownerName,
		"bids":        bids,
		"comments":    comments,
		"current_bid": currentBid.StringFixed(2),
	})
}

func (h *ListingHandler) List(e *core.RequestEvent) error {
	listings, err := h.store.ActiveListings(e.Request.Context())
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load listings", err)
	}
	return e.JSON(http.StatusOK, listings)
}
