package capture

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitcapture/handler"
	"github.com/dmitrymomot/fitcapture/pkg/limits"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

type createClientRequest struct {
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
}

func (h *handlers) createClient(ctx handler.Context, req createClientRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	if err := h.limits.CanCreate(ctx, owner, limits.ResourceClients); err != nil {
		return handler.Fail(err)
	}
	c, err := h.clients.Create(ctx, clients.NewClient{
		OwnerID: owner,
		Name:    req.Name,
		Gender:  req.Gender,
		Contact: req.Contact,
	})
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(c, handler.WithStatus(http.StatusCreated))
}

func (h *handlers) listClients(ctx handler.Context, _ struct{}) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	list, err := h.clients.List(ctx, owner)
	if err != nil {
		return handler.Fail(err)
	}
	if list == nil {
		list = []*clients.Client{}
	}
	return handler.JSON(list, handler.WithMeta(map[string]any{"count": len(list)}))
}

type clientRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
}

func (h *handlers) getClient(ctx handler.Context, req clientRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	c, err := h.clients.Get(ctx, owner, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(c)
}

type manualEntryRequest struct {
	ID           uuid.UUID          `path:"id" json:"-"`
	Measurements map[string]any `json:"measurements"`
}

func (h *handlers) recordManual(ctx handler.Context, req manualEntryRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	if !h.limits.HasFeature(ctx, limits.FeatureManualEntry) {
		return handler.Fail(ErrManualEntryNotInPlan)
	}
	c, err := h.manager.RecordManual(ctx, owner, req.ID, req.Measurements)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(c)
}
