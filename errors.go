package heycache

import (
	"fmt"
	"sort"
	"strings"
)

// EncodeError is returned when a value cannot be serialized for storage.
// It indicates a programming error at the call site.
type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("heycache: encode %q: %v", e.Key, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned when a stored payload does not decode into the
// caller's type. The entry has already been deleted when this is returned.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("heycache: decode %q: %v", e.Key, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidateError reports the keys of one invalidation whose delete failed.
// The remaining keys were deleted; deletes are not transactional.
type InvalidateError struct {
	Kind   string
	Failed map[string]error
}

func (e *InvalidateError) Keys() []string {
	ks := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func (e *InvalidateError) Error() string {
	ks := e.Keys()
	switch len(ks) {
	case 0:
		return fmt.Sprintf("invalidate %s: unknown error", e.Kind)
	case 1:
		return fmt.Sprintf("invalidate %s: delete %q failed: %v", e.Kind, ks[0], e.Failed[ks[0]])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalidate %s: %d deletes failed:", e.Kind, len(ks))
	for _, k := range ks {
		fmt.Fprintf(&b, " %q=%v;", k, e.Failed[k])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, k := range e.Keys() {
		errs = append(errs, e.Failed[k])
	}
	return errs
}
