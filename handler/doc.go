// Package handler adapts typed handlers to net/http.
//
// A handler receives a Context and a request struct filled by binders, and
// returns a Response:
//
//	h := handler.HandlerFunc[handler.Context, submitRequest](
//	    func(ctx handler.Context, req submitRequest) handler.Response {
//	        return handler.JSON(result, handler.WithStatus(http.StatusCreated))
//	    })
//	r.Post("/m/{code}/measurements", handler.Wrap(h,
//	    handler.WithBinders[handler.Context, submitRequest](binder.Path(), binder.JSON()),
//	    handler.WithErrorHandler[handler.Context, submitRequest](errHandler),
//	))
//
// Responses use a single JSON envelope: {"data": ..., "meta": ..., "error":
// {"code", "message", "details"}}.
package handler
