package main

import (
	"github.com/valyala/fasthttp"
)

type spansOut struct {
	Base  uint32      `json:"base"`
	Used  int         `json:"used"`
	Spans [][2]uint32 `json:"spans"`
}

func (ex *Explorer) getHandler(ctx *fasthttp.RequestCtx, path string) {
	switch path {
	case "/stats":
		writeJSON(ctx, fasthttp.StatusOK, ex.Stats())
	case "/map":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(ex.Map())
	case "/occupancy":
		spans := ex.Spans()
		out := spansOut{Base: ex.Stats().Base, Spans: spans}
		if out.Spans == nil {
			out.Spans = [][2]uint32{}
		}
		for _, sp := range spans {
			out.Used += int(sp[1] - sp[0])
		}
		writeJSON(ctx, fasthttp.StatusOK, out)
	case "/segments":
		writeJSON(ctx, fasthttp.StatusOK, ex.Segments())
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
