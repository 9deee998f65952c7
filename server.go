package main

import (
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/funny-falcon/bitheap/heap"
)

func (ex *Explorer) Handler(ctx *fasthttp.RequestCtx) {
	path := ctx.Path()
	logf("%s %s, args: %s", ctx.Method(), path, ctx.QueryArgs())
	switch {
	case ctx.IsGet():
		ex.getHandler(ctx, string(path))
	case ctx.IsPost():
		ex.postHandler(ctx, path)
	default:
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, v interface{}) {
	stream := jsonConfig.BorrowStream(nil)
	defer jsonConfig.ReturnStream(stream)
	stream.WriteVal(v)
	if stream.Error != nil {
		logf("encode %T: %v", v, stream.Error)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(stream.Buffer())
}

type errorOut struct {
	Error string `json:"error"`
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	writeJSON(ctx, statusOf(err), errorOut{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, heap.ErrNoFit):
		return fasthttp.StatusConflict
	case errors.Is(err, heap.ErrCorrupt):
		return fasthttp.StatusConflict
	case errors.Is(err, heap.ErrNotOurs), errors.Is(err, heap.ErrEmpty):
		return fasthttp.StatusBadRequest
	case errors.Is(err, errUnknownID):
		return fasthttp.StatusNotFound
	case errors.Is(err, heap.ErrNotReady):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusBadRequest
	}
}
