package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/loopsmith/internal/ir"
)

// Key identifies a cached run.
type Key struct {
	KernelHash string
	Mode       string
	ParamsHash string
}

// NewKey hashes the input trees and the parameter document. params must
// hold everything that changes the rewrite output: rewriter parameters,
// thresholds and platform.
func NewKey(nodes []ir.Node, mode string, params map[string]any) (Key, error) {
	kernelHash, err := ir.KernelHash(nodes)
	if err != nil {
		return Key{}, fmt.Errorf("new key: %w", err)
	}
	paramsHash, err := ir.ParamsHash(params)
	if err != nil {
		return Key{}, fmt.Errorf("new key: %w", err)
	}
	return Key{KernelHash: kernelHash, Mode: mode, ParamsHash: paramsHash}, nil
}

// Run is one journaled rewrite.
type Run struct {
	// Seq is the insertion order, assigned by the store.
	Seq int64
	// ID is assigned by the store's IDGenerator when empty.
	ID string
	// Kernel is the kernel's name in its source file.
	Kernel string
	Key
	// Applied lists the optimization flags in order.
	Applied []string
	// Arguments are the runtime parameters, as JSON.
	Arguments json.RawMessage
	// Output is the encoded rewriter state, as JSON.
	Output json.RawMessage
	// RewriterVersion is the version that produced Output.
	RewriterVersion string
}
