package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"campusmarket/internal/errors"
	"campusmarket/internal/service"
)

// ItemHandler serves listings for users and administrators alike; the
// ownership policy inside the service decides who may change what.
type ItemHandler struct {
	itemService service.ItemService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(itemService service.ItemService) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

// ItemRequest is the body of create and update calls, sent either as JSON
// or as multipart form fields.
type ItemRequest struct {
	Title       string      `json:"title" form:"title"`
	Description string      `json:"description" form:"description"`
	Price       json.Number `json:"price" form:"price" swaggertype:"string"`
	Category    string      `json:"category" form:"category"`
	ImageURL    string      `json:"image_url" form:"image_url"`
}

// CreateItemResponse is returned by Create.
type CreateItemResponse struct {
	ID       int64   `json:"id"`
	ImageURL *string `json:"image_url"`
}

// BrowseResponse wraps the public listing.
type BrowseResponse struct {
	Items []service.ItemView `json:"items"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// Browse godoc
// @Summary Browse all listings
// @Tags items
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BrowseResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /items/browse [get]
func (h *ItemHandler) Browse(c echo.Context) error {
	items, err := h.itemService.Browse(c.Request().Context())
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, BrowseResponse{Items: items})
}

// Mine godoc
// @Summary List the caller's listings
// @Tags items
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.ItemView
// @Failure 401 {object} errors.ErrorResponse
// @Router /items/mine [get]
func (h *ItemHandler) Mine(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	items, err := h.itemService.Mine(c.Request().Context(), caller)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Create godoc
// @Summary Create a listing
// @Description Multipart form with an optional "image" file (JPG, PNG or WEBP, at most 2 MiB).
// @Tags items
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param price formData string true "Price"
// @Param category formData string true "Category"
// @Param image formData file false "Image"
// @Success 201 {object} CreateItemResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /items [post]
func (h *ItemHandler) Create(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}

	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return respond(fmt.Errorf("%w: malformed request body", errors.ErrInvalidInput))
	}

	input := service.ItemInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price.String(),
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}

	image, err := formImage(c)
	if err != nil {
		return err
	}
	if image != nil {
		defer image.Close()
		input.Image = image
	}

	item, err := h.itemService.Create(c.Request().Context(), caller, input)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, CreateItemResponse{ID: item.ID, ImageURL: item.ImageURL})
}

// Update godoc
// @Summary Update a listing
// @Description Only provided, non-empty fields change. An uploaded "image" replaces the current one. Owners and administrators only.
// @Tags items
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param price formData string false "Price"
// @Param category formData string false "Category"
// @Param image_url formData string false "Image URL, used when no file is sent"
// @Param image formData file false "Image"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /items/{id} [put]
func (h *ItemHandler) Update(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return respond(fmt.Errorf("%w: malformed request body", errors.ErrInvalidInput))
	}

	patch := service.ItemPatch{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price.String(),
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}

	image, err := formImage(c)
	if err != nil {
		return err
	}
	if image != nil {
		defer image.Close()
		patch.Image = image
	}

	if err := h.itemService.Update(c.Request().Context(), caller, id, patch); err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "item updated"})
}

// Delete godoc
// @Summary Delete a listing
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.itemService.Delete(c.Request().Context(), caller, id); err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "item deleted"})
}

// ListAll godoc
// @Summary List every listing (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.ItemView
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/items [get]
func (h *ItemHandler) ListAll(c echo.Context) error {
	items, err := h.itemService.ListAll(c.Request().Context())
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, items)
}

// formImage opens the optional "image" upload. It returns nil when the
// request carries no file or is not multipart.
func formImage(c echo.Context) (multipart.File, error) {
	file, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := file.Open()
		if err != nil {
			return nil, respond(fmt.Errorf("open upload: %w", err))
		}
		return f, nil
	case stderrors.Is(err, http.ErrMissingFile), stderrors.Is(err, http.ErrNotMultipart):
		return nil, nil
	default:
		return nil, respond(fmt.Errorf("%w: unreadable image upload", errors.ErrInvalidInput))
	}
}
