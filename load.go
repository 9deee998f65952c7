package main

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonConfig = jsoniter.Config{
	OnlyTaggedField: true,
	CaseSensitive:   true,
}.Froze()

type Op struct {
	Op   string `json:"op"`
	ID   string `json:"id"`
	Size uint16 `json:"size"`
}

type Script struct {
	Capacity int  `json:"capacity"`
	Ops      []Op `json:"ops"`
}

type Result struct {
	Reserved int
	Released int
	Failed   int
}

// ReadScript reads a workload from json file, or from the first .json
// file inside a zip archive.
func ReadScript(path string) (*Script, error) {
	if strings.HasSuffix(path, ".zip") {
		return readZipScript(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeScript(f)
}

func readZipScript(path string) (*Script, error) {
	zipf, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zipf.Close()
	for _, f := range zipf.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return decodeScript(rc)
	}
	return nil, fmt.Errorf("%s: no json script inside", path)
}

func decodeScript(r io.Reader) (*Script, error) {
	var sc Script
	if err := jsonConfig.NewDecoder(r).Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &sc, nil
}

// Replay runs script ops. Heap refusals are counted, not fatal;
// malformed ops stop the replay.
func Replay(ex *Explorer, sc *Script) (Result, error) {
	var res Result
	for i, op := range sc.Ops {
		switch op.Op {
		case "reserve":
			if op.ID == "" {
				return res, fmt.Errorf("op %d: reserve needs id", i)
			}
			if _, _, err := ex.Reserve(op.ID, op.Size); err != nil {
				res.Failed++
				continue
			}
			res.Reserved++
		case "release":
			err := ex.ReleaseID(op.ID)
			if err == nil {
				res.Released++
				continue
			}
			if errors.Is(err, errUnknownID) {
				return res, fmt.Errorf("op %d: %w", i, err)
			}
			res.Failed++
		default:
			return res, fmt.Errorf("op %d: unknown op %q", i, op.Op)
		}
	}
	logf("replayed %d ops: %d reserved, %d released, %d failed",
		len(sc.Ops), res.Reserved, res.Released, res.Failed)
	return res, nil
}
