// Command bitheap explores fragmentation of a bitmap heap: it replays a
// json workload and serves the heap over http for poking at by hand.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/funny-falcon/bitheap/alloc"
	"github.com/funny-falcon/bitheap/heap"
)

var capacity = flag.Int("capacity", 1000, "heap capacity in bytes")
var budget = flag.Int("budget", 0, "memory facility budget in bytes, 0 is unlimited")
var useMmap = flag.Bool("mmap", false, "back regions with anonymous mmap")
var script = flag.String("script", "", "json workload (or zip with one) to replay")
var port = flag.String("port", "8080", "port to listen")
var onlyload = flag.Bool("onlyload", false, "only replay script")
var verbose = flag.Bool("v", false, "log every heap event")

func logf(format string, args ...interface{}) {
	if *verbose {
		log.Output(2, fmt.Sprintf(format, args...))
	}
}

func facility() alloc.Facility {
	if *useMmap {
		return alloc.NewMmap(alloc.DefaultOrigin, *budget)
	}
	return alloc.NewSimple(alloc.DefaultOrigin, *budget)
}

func heapLogger() heap.Logger {
	if !*verbose {
		return heap.NopLogger{}
	}
	return heap.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelDebug})))
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Lshortfile)
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var sc *Script
	if *script != "" {
		var err error
		if sc, err = ReadScript(*script); err != nil {
			return err
		}
		if sc.Capacity > 0 {
			*capacity = sc.Capacity
		}
	}

	ex, err := NewExplorer(facility(), heapLogger(), *capacity)
	if err != nil {
		return err
	}
	defer func() {
		if err := ex.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	if sc != nil {
		res, err := Replay(ex, sc)
		if err != nil {
			return err
		}
		fmt.Printf("reserved %d, released %d, failed %d\n", res.Reserved, res.Released, res.Failed)
		ex.Report(os.Stdout)
	}

	if *onlyload {
		return nil
	}

	ex.Changed = NewDebounce(time.Second/2, func() {
		st := ex.Stats()
		log.Printf("heap: used %d of %d, %d live, largest free %d, fragmentation %.3f",
			st.Used, st.Capacity, st.Live, st.LargestFree, st.Fragmentation)
	})

	log.Printf("listening on :%s", *port)
	return fasthttp.ListenAndServe(":"+*port, ex.Handler)
}
