// Package shadow implements traffic-shadowing policies: selectors that
// govern which slice of live traffic is duplicated to a secondary pool for
// validation or warm-up. A policy's bounds may be rebound at runtime through
// operator variables; readers always observe one fully valid snapshot.
package shadow

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/runtimevars"
)

// Type selects how the shadow destination treats duplicated traffic.
type Type int

// Shadow policy types.
const (
	DefaultPolicy Type = iota
	ValidationPolicy
)

// Data is one immutable snapshot of a shadowing policy's selectors.
type Data struct {
	// StartIndex and EndIndex bound the destination indexes that shadow,
	// inclusive.
	StartIndex uint64
	EndIndex   uint64

	// StartKeyFraction and EndKeyFraction bound the shadowed key-hash
	// fraction, each in [0, 1].
	StartKeyFraction float64
	EndKeyFraction   float64

	// ShadowPool names the pool receiving duplicated traffic.
	ShadowPool string

	ShadowType      Type
	ValidateReplies bool

	// IndexRangeVar and KeyFractionRangeVar optionally name runtime
	// variables that rebind the ranges live.
	IndexRangeVar       string
	KeyFractionRangeVar string
}

func newDataFromJSON(raw interface{}) (*Data, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("shadowing_policy is not object")
	}
	d := &Data{}
	if v, ok := obj["index_range"]; ok {
		start, end, err := indexRangeFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("shadowing_policy: %v", err)
		}
		d.StartIndex, d.EndIndex = start, end
	}
	if v, ok := obj["key_fraction_range"]; ok {
		start, end, err := keyFractionRangeFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("shadowing_policy: %v", err)
		}
		d.StartKeyFraction, d.EndKeyFraction = start, end
	}
	if v, ok := obj["index_range_rv"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("shadowing_policy: index_range_rv is not string")
		}
		d.IndexRangeVar = s
	}
	if v, ok := obj["key_fraction_range_rv"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("shadowing_policy: key_fraction_range_rv is not string")
		}
		d.KeyFractionRangeVar = s
	}
	return d, nil
}

func indexRangeFromValue(v interface{}) (start, end uint64, err error) {
	arr, ok := v.([]interface{})
	if !ok {
		return 0, 0, errors.New("index_range is not array")
	}
	if len(arr) != 2 {
		return 0, 0, errors.New("index_range size is not 2")
	}
	start, err = asIndex(arr[0])
	if err != nil {
		return 0, 0, fmt.Errorf("start_index %v", err)
	}
	end, err = asIndex(arr[1])
	if err != nil {
		return 0, 0, fmt.Errorf("end_index %v", err)
	}
	if start > end {
		return 0, 0, errors.New("index_range start > end")
	}
	return start, end, nil
}

func keyFractionRangeFromValue(v interface{}) (start, end float64, err error) {
	arr, ok := v.([]interface{})
	if !ok {
		return 0, 0, errors.New("key_fraction_range is not array")
	}
	if len(arr) != 2 {
		return 0, 0, errors.New("key_fraction_range size is not 2")
	}
	start, ok = asNumber(arr[0])
	if !ok {
		return 0, 0, errors.New("start_key_fraction is not a number")
	}
	end, ok = asNumber(arr[1])
	if !ok {
		return 0, 0, errors.New("end_key_fraction is not a number")
	}
	if start < 0 || start > end || end > 1 {
		return 0, 0, errors.New("invalid key_fraction_range")
	}
	return start, end, nil
}

// asIndex accepts a non-negative integral JSON number.
func asIndex(v interface{}) (uint64, error) {
	f, ok := asNumber(v)
	if !ok {
		return 0, errors.New("is not an int")
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, errors.New("is not a non-negative int")
	}
	return uint64(f), nil
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Policy publishes versioned shadowing-policy snapshots and keeps them in
// sync with runtime variables.
type Policy struct {
	data   atomic.Pointer[Data]
	handle *runtimevars.Handle
	logger *zap.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// Logger sets the logger used to report rejected live updates.
func Logger(logger *zap.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New parses a policy from a decoded JSON value and, when vars is non-nil,
// subscribes for live range updates. Validation errors are fatal for the
// policy.
func New(raw interface{}, vars *runtimevars.Store, opts ...Option) (*Policy, error) {
	d, err := newDataFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return NewFromData(d, vars, opts...), nil
}

// NewFromData wraps an already-built Data snapshot, subscribing for live
// updates when vars is non-nil.
func NewFromData(d *Data, vars *runtimevars.Store, opts ...Option) *Policy {
	p := &Policy{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.data.Store(d)
	if vars != nil {
		p.handle = vars.SubscribeAndCall(p.onVarsUpdate)
	}
	return p
}

// Data returns the current snapshot. The returned value is immutable.
func (p *Policy) Data() *Data {
	return p.data.Load()
}

// Close detaches the policy from runtime-variable updates. It must be
// called before the policy is discarded; the subscription callback must not
// outlive the policy.
func (p *Policy) Close() {
	p.handle.Unsubscribe()
	p.handle = nil
}

// onVarsUpdate stages new bounds from the published variables, validates
// them, and atomically installs a fresh snapshot. A validation failure
// rejects the whole update and keeps the previous snapshot.
func (p *Policy) onVarsUpdate(_, newVars runtimevars.Data) {
	if newVars == nil {
		return
	}
	dataCopy := *p.data.Load()

	var (
		startIndex, endIndex           uint64
		startKeyFraction, endFraction  float64
		updateRange, updateKeyFraction bool
	)
	if dataCopy.IndexRangeVar != "" {
		if v, ok := newVars.Get(dataCopy.IndexRangeVar); ok {
			start, end, err := indexRangeFromValue(v)
			if err != nil {
				p.logger.Warn("Rejected shadowing index_range update.",
					zap.String("variable", dataCopy.IndexRangeVar),
					zap.Error(err))
				return
			}
			startIndex, endIndex = start, end
			updateRange = true
		}
	}
	if dataCopy.KeyFractionRangeVar != "" {
		if v, ok := newVars.Get(dataCopy.KeyFractionRangeVar); ok {
			start, end, err := keyFractionRangeFromValue(v)
			if err != nil {
				p.logger.Warn("Rejected shadowing key_fraction_range update.",
					zap.String("variable", dataCopy.KeyFractionRangeVar),
					zap.Error(err))
				return
			}
			startKeyFraction, endFraction = start, end
			updateKeyFraction = true
		}
	}

	if updateRange {
		dataCopy.StartIndex = startIndex
		dataCopy.EndIndex = endIndex
	}
	if updateKeyFraction {
		dataCopy.StartKeyFraction = startKeyFraction
		dataCopy.EndKeyFraction = endFraction
	}
	p.data.Store(&dataCopy)
}
