package cfb

import (
	"context"

	log "github.com/dsoprea/go-logging"
)

// Category tags every diagnostic this package can emit, fatal or not.
type Category int

const (
	CategoryNotCFB Category = iota
	CategoryInvalidVersion
	CategoryInvalidByteOrder
	CategoryHeaderCorrupt
	CategoryHeaderWarning
	CategorySectorSize
	CategoryMiniSectorSize
	CategoryCutoff
	CategoryDIFAT
	CategoryMalformedFAT
	CategoryMalformedChain
	CategoryCycleDetected
	CategoryDirectory
	CategoryDirectoryCycle
	CategoryStreamSizeMismatch
	CategoryStreamClosed
	CategoryOutOfRange
)

var categoryNames = map[Category]string{
	CategoryNotCFB:             "NotCFB",
	CategoryInvalidVersion:     "InvalidVersion",
	CategoryInvalidByteOrder:   "InvalidByteOrder",
	CategoryHeaderCorrupt:      "HeaderCorrupt",
	CategoryHeaderWarning:      "HeaderWarning",
	CategorySectorSize:         "SectorSizeWarning",
	CategoryMiniSectorSize:     "MiniSectorSizeWarning",
	CategoryCutoff:             "CutoffWarning",
	CategoryDIFAT:              "DIFATWarning",
	CategoryMalformedFAT:       "MalformedFAT",
	CategoryMalformedChain:     "MalformedChain",
	CategoryCycleDetected:      "CycleDetected",
	CategoryDirectory:          "DirectoryWarning",
	CategoryDirectoryCycle:     "DirectoryCycle",
	CategoryStreamSizeMismatch: "StreamSizeMismatch",
	CategoryStreamClosed:       "StreamClosed",
	CategoryOutOfRange:         "OutOfRange",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "Unknown"
}

// fatalByDefault lists the categories that are always fatal, regardless of
// promotion configuration: they describe states the reader cannot recover
// from structurally.
var fatalByDefault = map[Category]bool{
	CategoryNotCFB:           true,
	CategoryInvalidVersion:   true,
	CategoryInvalidByteOrder: true,
	CategoryHeaderCorrupt:    true,
	CategoryMalformedFAT:     true,
	CategoryMalformedChain:   true,
	CategoryCycleDetected:    true,
	CategoryDirectoryCycle:   true,
}

// Sink receives every non-fatal diagnostic this package produces. Callers
// supply their own via WithSink; the default sink forwards to a
// github.com/dsoprea/go-logging logger.
type Sink interface {
	Warn(cat Category, offset int64, message string)
}

// defaultSink adapts the ambient go-logging logger to the Sink interface.
type defaultSink struct {
	logger *log.Logger
}

func newDefaultSink() *defaultSink {
	return &defaultSink{logger: log.NewLogger("github.com/go-cfb/cfb")}
}

func (d *defaultSink) Warn(cat Category, offset int64, message string) {
	d.logger.Warningf(context.Background(), "%s: %s (offset %d)", cat, message, offset)
}

// DiscardSink drops every diagnostic. Useful for callers that only want the
// fatal-error path.
type discardSink struct{}

func (discardSink) Warn(Category, int64, string) {}

// DiscardSink returns a Sink that drops all warnings.
func DiscardSink() Sink { return discardSink{} }

// diagnostics bundles the sink and the promoted-category set consulted on
// every emission; it is the "single sink function" spec.md §9 calls for.
type diagnostics struct {
	sink    Sink
	promote map[Category]bool
}

func newDiagnostics(sink Sink, promote []Category) *diagnostics {
	if sink == nil {
		sink = newDefaultSink()
	}
	d := &diagnostics{sink: sink, promote: make(map[Category]bool, len(promote))}
	for _, c := range promote {
		d.promote[c] = true
	}
	return d
}

// warn emits a diagnostic. If the category is fatal by definition or has
// been promoted, it returns a non-nil *Error for the caller to propagate;
// otherwise it forwards to the sink and returns nil.
func (d *diagnostics) warn(cat Category, offset int64, message string) *Error {
	if fatalByDefault[cat] || d.promote[cat] {
		return newErr(cat, offset, message)
	}
	d.sink.Warn(cat, offset, message)
	return nil
}
