package variant

import (
	"fmt"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// ContainerKind names the container a depth limit applies to.
type ContainerKind uint8

const (
	ContainerArray ContainerKind = iota
	ContainerStruct
	ContainerVariant
)

// String returns the container name.
func (k ContainerKind) String() string {
	switch k {
	case ContainerArray:
		return "array"
	case ContainerStruct:
		return "struct"
	case ContainerVariant:
		return "variant"
	default:
		return "unknown"
	}
}

// DepthError reports which container exceeded its nesting limit.
type DepthError struct {
	Kind  ContainerKind
	Depth int
	Total bool
}

func (e *DepthError) Error() string {
	if e.Total {
		return fmt.Sprintf("%v: total container depth %d", ErrMaxDepthExceeded, e.Depth)
	}
	return fmt.Sprintf("%v: %s depth %d", ErrMaxDepthExceeded, e.Kind, e.Depth)
}

// Is makes DepthError match ErrMaxDepthExceeded.
func (e *DepthError) Is(target error) bool {
	return target == ErrMaxDepthExceeded
}

// containerDepths tracks nesting while walking a value. Every enter is
// paired with exactly one leave, in LIFO order.
type containerDepths struct {
	array     int
	structure int
	variant   int
}

func (d *containerDepths) enter(kind ContainerKind) error {
	switch kind {
	case ContainerArray:
		d.array++
		if d.array > signature.MaxArrayDepth {
			return &DepthError{Kind: kind, Depth: d.array}
		}
	case ContainerStruct:
		d.structure++
		if d.structure > signature.MaxStructDepth {
			return &DepthError{Kind: kind, Depth: d.structure}
		}
	case ContainerVariant:
		d.variant++
		if d.variant > signature.MaxVariantDepth {
			return &DepthError{Kind: kind, Depth: d.variant}
		}
	}
	if total := d.array + d.structure + d.variant; total > signature.MaxTotalDepth {
		return &DepthError{Kind: kind, Depth: total, Total: true}
	}
	return nil
}

func (d *containerDepths) leave(kind ContainerKind) {
	switch kind {
	case ContainerArray:
		d.array--
	case ContainerStruct:
		d.structure--
	case ContainerVariant:
		d.variant--
	}
}
