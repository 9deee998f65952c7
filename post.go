package main

import (
	"bytes"
	"fmt"
	"math"

	"github.com/valyala/fasthttp"

	"github.com/funny-falcon/bitheap/segment"
)

func (ex *Explorer) postHandler(ctx *fasthttp.RequestCtx, path []byte) {
	switch {
	case bytes.Equal(path, []byte("/reserve")):
		ex.doReserve(ctx)
	case bytes.Equal(path, []byte("/release")):
		ex.doRelease(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func argUint16(args *fasthttp.Args, key string) (uint16, error) {
	v, err := args.GetUint(key)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", key, err)
	}
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("%s: %d is too large", key, v)
	}
	return uint16(v), nil
}

func (ex *Explorer) doReserve(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	size, err := argUint16(args, "size")
	if err != nil {
		writeError(ctx, err)
		return
	}
	id, seg, err := ex.Reserve(string(args.Peek("id")), size)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, NamedSegment{ID: id, Addr: seg.Addr, Size: seg.Size})
}

func (ex *Explorer) doRelease(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	if id := args.Peek("id"); len(id) > 0 {
		if err := ex.ReleaseID(string(id)); err != nil {
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, struct{}{})
		return
	}

	addr, err := args.GetUint("addr")
	if err != nil {
		writeError(ctx, fmt.Errorf("addr: %v", err))
		return
	}
	// missing size means empty segment, heap decides what to do with it
	var size uint16
	if args.Has("size") {
		if size, err = argUint16(args, "size"); err != nil {
			writeError(ctx, err)
			return
		}
	}
	if err := ex.Release(segment.Segment{Addr: uint32(addr), Size: size}); err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, struct{}{})
}
