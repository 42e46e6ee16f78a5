package payos

import (
	"sync/atomic"
	"time"
)

// CodeGenerator hands out strictly increasing order codes of the form
// unixMillis*1000+n. Codes stay below 2^53 so the provider's JSON parsers
// keep them exact.
type CodeGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{now: time.Now}
}

func (g *CodeGenerator) Next() int64 {
	for {
		candidate := g.now().UnixMilli() * 1000
		last := g.last.Load()
		if candidate <= last {
			candidate = last + 1
		}
		if g.last.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}
