package ir

import "fmt"

// Slot is one Go struct field of a rendered record.
type Slot struct {
	Name string
	Type string
}

// Layout maps the fields of a struct onto Go struct fields, inserting blank
// padding where the C offsets run ahead of Go's natural placement and
// grouping runs of bit-fields into byte storage. It reports false when the
// C layout cannot be expressed, such as packed members or overlapping storage.
func Layout(r *Record) ([]Slot, bool) {
	var (
		slots    []Slot
		cur      int64
		maxAlign int64 = 1
		bitGroup int
	)

	pad := func(to int64) {
		if to > cur {
			slots = append(slots, Slot{Name: "_", Type: fmt.Sprintf("[%d]byte", to-cur)})
			cur = to
		}
	}

	for i := 0; i < len(r.Fields); i++ {
		f := r.Fields[i]
		if f.Bits > 0 {
			start := f.BitOffset / 8
			end := f.BitOffset + f.Bits
			for i+1 < len(r.Fields) && r.Fields[i+1].Bits > 0 {
				i++
				next := r.Fields[i]
				if e := next.BitOffset + next.Bits; e > end {
					end = e
				}
			}
			endByte := (end + 7) / 8
			if start < cur {
				return nil, false
			}
			pad(start)
			bitGroup++
			slots = append(slots, Slot{
				Name: fmt.Sprintf("_bitfield_%d", bitGroup),
				Type: fmt.Sprintf("[%d]byte", endByte-start),
			})
			cur = endByte
			continue
		}

		align := f.Align
		if align <= 0 {
			align = 1
		}
		if f.Size < 0 || f.Offset%align != 0 || f.Offset < alignUp(cur, align) {
			return nil, false
		}
		pad(f.Offset)
		slots = append(slots, Slot{Name: f.Name, Type: f.Type.Go()})
		cur = f.Offset + f.Size
		if align > maxAlign {
			maxAlign = align
		}
	}

	if r.Size >= 0 {
		if alignUp(cur, maxAlign) > r.Size {
			return nil, false
		}
		if alignUp(cur, maxAlign) < r.Size {
			pad(r.Size)
		}
	}
	return slots, true
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// alignType returns a Go type whose alignment matches align.
func alignType(align int64) string {
	switch {
	case align >= 8:
		return "uint64"
	case align >= 4:
		return "uint32"
	case align >= 2:
		return "uint16"
	}
	return "uint8"
}
