package rowid

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/spaolacci/murmur3"
)

// Digest is a 128-bit row fingerprint.
type Digest struct {
	H1, H2 uint64
}

// String renders the digest as 32 hex characters.
func (d Digest) String() string {
	return fmt.Sprintf("%016x%016x", d.H1, d.H2)
}

// Fingerprint computes a murmur3 128-bit hash over a row's values. Each
// value is prefixed with a type tag so that 1, "1" and x'31' hash apart. A
// real with an integral value hashes as the integer, since the engine
// compares 1 and 1.0 as equal.
func Fingerprint(values []any) Digest {
	h := murmur3.New128()
	var buf [8]byte
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			h.Write([]byte{0})
		case int64:
			h.Write([]byte{1})
			binary.LittleEndian.PutUint64(buf[:], uint64(x))
			h.Write(buf[:])
		case int:
			h.Write([]byte{1})
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(x)))
			h.Write(buf[:])
		case float64:
			if i, ok := integral(x); ok {
				h.Write([]byte{1})
				binary.LittleEndian.PutUint64(buf[:], uint64(i))
			} else {
				h.Write([]byte{2})
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			}
			h.Write(buf[:])
		case string:
			h.Write([]byte{3})
			writeLen(h, len(x), &buf)
			h.Write([]byte(x))
		case []byte:
			h.Write([]byte{4})
			writeLen(h, len(x), &buf)
			h.Write(x)
		case bool:
			h.Write([]byte{1})
			var n uint64
			if x {
				n = 1
			}
			binary.LittleEndian.PutUint64(buf[:], n)
			h.Write(buf[:])
		case time.Time:
			s := x.Format(time.RFC3339Nano)
			h.Write([]byte{3})
			writeLen(h, len(s), &buf)
			h.Write([]byte(s))
		default:
			s := fmt.Sprint(x)
			h.Write([]byte{5})
			writeLen(h, len(s), &buf)
			h.Write([]byte(s))
		}
	}
	h1, h2 := h.Sum128()
	return Digest{H1: h1, H2: h2}
}

// integral reports whether f holds an exact int64 value.
func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func writeLen(h murmur3.Hash128, n int, buf *[8]byte) {
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

// DuplicateGroup is a set of identical rows.
type DuplicateGroup struct {
	Digest Digest `json:"-"`
	Key    string `json:"digest"`
	Count  int    `json:"count"`
	Values []any  `json:"values"`
}

// Deduper accumulates row fingerprints and reports rows seen more than once.
type Deduper struct {
	order  []Digest
	groups map[Digest]*DuplicateGroup
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{groups: make(map[Digest]*DuplicateGroup)}
}

// Add records one row.
func (d *Deduper) Add(values []any) {
	dg := Fingerprint(values)
	if g, ok := d.groups[dg]; ok {
		g.Count++
		return
	}
	cp := make([]any, len(values))
	copy(cp, values)
	d.groups[dg] = &DuplicateGroup{Digest: dg, Key: dg.String(), Count: 1, Values: cp}
	d.order = append(d.order, dg)
}

// Duplicates returns groups with more than one row, in first-seen order.
func (d *Deduper) Duplicates() []DuplicateGroup {
	var out []DuplicateGroup
	for _, dg := range d.order {
		if g := d.groups[dg]; g.Count > 1 {
			out = append(out, *g)
		}
	}
	return out
}
