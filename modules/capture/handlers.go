package capture

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitcapture/handler"
	"github.com/dmitrymomot/fitcapture/pkg/binder"
	"github.com/dmitrymomot/fitcapture/pkg/jwt"
	"github.com/dmitrymomot/fitcapture/pkg/limits"
	capturesvc "github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

var (
	pathBinder  handler.Bind = binder.Path()
	queryBinder handler.Bind = binder.Query()
	jsonBinder  handler.Bind = binder.JSON()
)

type handlers struct {
	manager *capturesvc.Manager
	clients *clients.Service
	limits  *limits.Service
	errors  handler.ErrorHandler[handler.Context]
}

func ownerID(ctx context.Context) (uuid.UUID, error) {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, jwt.ErrMissingToken
	}
	return claims.OwnerID()
}

func (h *handlers) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	h.errors(handler.NewContext(w, r), err)
}

func (h *handlers) rateLimited() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.errors(handler.NewContext(w, r), handler.HTTPError{
			Code:    http.StatusTooManyRequests,
			Key:     "rate_limited",
			Message: "Too many requests. Try again shortly.",
		})
	})
}

type codeRequest struct {
	Code string `path:"code" json:"-"`
}

func (h *handlers) resolve(ctx handler.Context, req codeRequest) handler.Response {
	res, err := h.manager.Resolve(ctx, req.Code)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newResolutionView(res))
}

type guestPayload struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Gender  string `json:"gender"`
}

func (g *guestPayload) details() *capturesvc.GuestDetails {
	if g == nil {
		return nil
	}
	return &capturesvc.GuestDetails{Name: g.Name, Contact: g.Contact, Gender: g.Gender}
}

type submitRequest struct {
	Code         string         `path:"code" json:"-"`
	Measurements map[string]any `json:"measurements"`
	Confidence   *float64       `json:"confidence"`
	Guest        *guestPayload  `json:"guest"`
}

func (h *handlers) submit(ctx handler.Context, req submitRequest) handler.Response {
	out, err := h.manager.Submit(ctx, req.Code, capturesvc.Submission{
		Measurements: req.Measurements,
		Confidence:   req.Confidence,
		Guest:        req.Guest.details(),
	})
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newOutcomeView(out))
}

type issueRequest struct {
	ClientID *uuid.UUID `json:"client_id"`
}

func (h *handlers) issue(ctx handler.Context, req issueRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	if req.ClientID == nil && !h.limits.HasFeature(ctx, limits.FeatureGuestCapture) {
		return handler.Fail(ErrGuestCaptureNotInPlan)
	}
	if err := h.limits.CanCreate(ctx, owner, limits.ResourceCaptureSessions); err != nil {
		return handler.Fail(err)
	}

	issued, err := h.manager.Issue(ctx, capturesvc.IssueRequest{OwnerID: owner, ClientID: req.ClientID})
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newIssuedView(issued), handler.WithStatus(http.StatusCreated))
}

type listRequest struct {
	Status string `query:"status"`
	Limit  int    `query:"limit"`
}

func (h *handlers) list(ctx handler.Context, req listRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	sessions, err := h.manager.ListForOwner(ctx, capturesvc.ListFilter{
		OwnerID: owner,
		Status:  capturesvc.Status(req.Status),
		Limit:   req.Limit,
	})
	if err != nil {
		return handler.Fail(err)
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	usage, err := h.limits.Usage(ctx, owner, limits.ResourceCaptureSessions)
	if err != nil {
		return handler.JSON(views, handler.WithMeta(map[string]any{"count": len(views)}))
	}
	return handler.JSON(views, handler.WithMeta(map[string]any{"count": len(views), "usage": usage}))
}

type promoteRequest struct {
	Code    string `path:"code" json:"-"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Gender  string `json:"gender"`
}

func (h *handlers) promote(ctx handler.Context, req promoteRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	s, err := h.manager.Promote(ctx, owner, req.Code, &capturesvc.GuestDetails{
		Name:    req.Name,
		Contact: req.Contact,
		Gender:  req.Gender,
	})
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newSessionView(s))
}

func (h *handlers) reconcile(ctx handler.Context, req codeRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	s, err := h.manager.Reconcile(ctx, owner, req.Code)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newSessionView(s))
}

type failRequest struct {
	Code   string `path:"code" json:"-"`
	Reason string `json:"reason"`
}

func (h *handlers) fail(ctx handler.Context, req failRequest) handler.Response {
	owner, err := ownerID(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	s, err := h.manager.Fail(ctx, owner, req.Code, req.Reason)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(newSessionView(s))
}
