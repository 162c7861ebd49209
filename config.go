// Copyright 2024 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlpdf

import (
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Appearance selects the color-scheme CSS injected into a render.
type Appearance int

const (
	Light Appearance = iota
	Dark
	AutoAppearance
)

// AutomaticHeuristic selects how Automatic pagination mode decides between
// SinglePage and Paginated.
type AutomaticHeuristic int

const (
	ContentLength AutomaticHeuristic = iota
	HtmlStructure
	PreferSpeed
	PreferPrintReady
)

// PaginationMode controls which internal rendering method is chosen (
// step 4).
type PaginationMode struct {
	kind      paginationKind
	heuristic AutomaticHeuristic
	threshold float64 // used only when heuristic == ContentLength
}

type paginationKind int

const (
	paginationContinuous paginationKind = iota
	paginationPaginated
	paginationAutomatic
)

func Continuous() PaginationMode { return PaginationMode{kind: paginationContinuous} }
func Paginated() PaginationMode  { return PaginationMode{kind: paginationPaginated} }

func AutomaticContentLength(thresholdPages float64) PaginationMode {
	return PaginationMode{kind: paginationAutomatic, heuristic: ContentLength, threshold: thresholdPages}
}

func AutomaticHtmlStructure() PaginationMode {
	return PaginationMode{kind: paginationAutomatic, heuristic: HtmlStructure}
}

func AutomaticPreferSpeed() PaginationMode {
	return PaginationMode{kind: paginationAutomatic, heuristic: PreferSpeed}
}

func AutomaticPreferPrintReady() PaginationMode {
	return PaginationMode{kind: paginationAutomatic, heuristic: PreferPrintReady}
}

// InternalMode is the rendering method DocumentRenderer ultimately chooses.
type InternalMode int

const (
	SinglePage InternalMode = iota
	PaginatedMode
)

func (m InternalMode) String() string {
	if m == PaginatedMode {
		return "paginated"
	}
	return "single_page"
}

// PaperSize is a width/height pair in points.
type PaperSize struct {
	Width  float64
	Height float64
}

// A4 is the default paper size.
var A4 = PaperSize{Width: 595.28, Height: 841.89}

// EdgeInsets holds the four print margins, always clamped to >= 0.
type EdgeInsets struct {
	Top, Right, Bottom, Left float64
}

func (e EdgeInsets) clamp() EdgeInsets {
	clampNonNeg := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	return EdgeInsets{
		Top:    clampNonNeg(e.Top),
		Right:  clampNonNeg(e.Right),
		Bottom: clampNonNeg(e.Bottom),
		Left:   clampNonNeg(e.Left),
	}
}

// DefaultMargins are the 36pt margins on all sides.
var DefaultMargins = EdgeInsets{Top: 36, Right: 36, Bottom: 36, Left: 36}

// ConcurrencyStrategy picks how many documents render in flight at once.
type ConcurrencyStrategy struct {
	fixed int // > 0 means Fixed(fixed); 0 means Automatic
}

func FixedConcurrency(n int) ConcurrencyStrategy {
	if n < 1 {
		n = 1
	}
	return ConcurrencyStrategy{fixed: n}
}

func AutomaticConcurrency() ConcurrencyStrategy { return ConcurrencyStrategy{} }

// resolved computes the concurrency level: hosts with >=4 CPUs use
// CPU count; resource-constrained hosts cap at min(CPU,4).
// Resolved exposes resolved() to callers outside the package (e.g. a CLI
// that needs to size its own pool before constructing one).
func (c ConcurrencyStrategy) Resolved() int { return c.resolved() }

func (c ConcurrencyStrategy) resolved() int {
	if c.fixed > 0 {
		return c.fixed
	}
	n := runtime.NumCPU()
	if n >= 4 {
		return n
	}
	if n < 1 {
		return 1
	}
	return n
}

// NamingStrategy maps a batch index to a filename stem (no extension).
// Implementations must be safe for concurrent use.
type NamingStrategy interface {
	Name(index int) string
}

// SequentialNaming yields "{index+1}".
type SequentialNaming struct{}

func (SequentialNaming) Name(index int) string {
	return strconv.Itoa(index + 1)
}

// UUIDNaming yields a fresh UUID per call, grounded on google/uuid.
type UUIDNaming struct{}

func (UUIDNaming) Name(int) string {
	return newUUID()
}

// Configuration is the immutable snapshot recognized by the core. It
// is safe to share across goroutines once constructed; BatchScheduler never
// mutates it.
type Configuration struct {
	PaperSize                PaperSize
	Margins                  EdgeInsets
	BaseURL                  string
	PaginationMode           PaginationMode
	Appearance               Appearance
	Concurrency              ConcurrencyStrategy
	DocumentTimeout          time.Duration // 0 = no limit
	BatchTimeout             time.Duration // 0 = no limit
	WorkerAcquisitionTimeout time.Duration `validate:"required,gt=0"`
	CreateDirectories        bool
	NamingStrategy           NamingStrategy

	// ContinueOnError opts into the resilient batch mode described as an
	// open question in the design notes: when true the scheduler does not
	// fail-fast, instead collecting FailedDocument entries and finishing
	// the stream successfully.
	ContinueOnError bool

	// MaxUsesBeforeRecreate and ClearCachesEvery configure every
	// WorkerResource created against this configuration.
	MaxUsesBeforeRecreate int
	ClearCachesEvery      int
}

// DefaultConfiguration returns A4 portrait, 36pt margins, Continuous mode,
// Light appearance, Automatic concurrency, 60s acquisition timeout,
// sequential naming.
func DefaultConfiguration() Configuration {
	return Configuration{
		PaperSize:                A4,
		Margins:                  DefaultMargins,
		PaginationMode:           Continuous(),
		Appearance:               Light,
		Concurrency:              AutomaticConcurrency(),
		WorkerAcquisitionTimeout: 60 * time.Second,
		CreateDirectories:        true,
		NamingStrategy:           SequentialNaming{},
		MaxUsesBeforeRecreate:    2000,
		ClearCachesEvery:         100,
	}
}

var structValidator = validator.New()

// Normalize applies the arithmetic clamps and defaults:
// margins clamp to >= 0; a non-positive paper size falls back to A4; a
// missing naming strategy falls back to Sequential; a non-positive
// MaxUsesBeforeRecreate falls back to 2000 and a non-positive
// WorkerAcquisitionTimeout to 60s. It then runs struct validation over the
// tagged fields and returns the first validation error wrapped as
// PoolInitFailed, since a malformed configuration can never produce a
// usable pool. Because of the defaults above, the WorkerAcquisitionTimeout
// tag never rejects a configuration passed through Normalize.
func (c Configuration) Normalize() (Configuration, error) {
	c.Margins = c.Margins.clamp()
	if c.PaperSize.Width <= 0 || c.PaperSize.Height <= 0 {
		c.PaperSize = A4
	}
	if c.NamingStrategy == nil {
		c.NamingStrategy = SequentialNaming{}
	}
	if c.MaxUsesBeforeRecreate <= 0 {
		c.MaxUsesBeforeRecreate = 2000
	}
	if c.WorkerAcquisitionTimeout <= 0 {
		c.WorkerAcquisitionTimeout = 60 * time.Second
	}
	if err := structValidator.Struct(&c); err != nil {
		return c, newError(PoolInitFailed, "normalize configuration", err)
	}
	return c, nil
}
