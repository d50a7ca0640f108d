package dashboard

import "fmt"

// PageSize is the fixed number of bounties per dashboard page.
const PageSize = 15

// Pager is skip/take cursor arithmetic for the bounty table.
type Pager struct {
	Skip int
	Take int
}

func NewPager() Pager {
	return Pager{Take: PageSize}
}

func (p Pager) CanPrev() bool {
	return p.Skip > 0
}

// Prev moves back one page, never below zero.
func (p *Pager) Prev() {
	p.Skip -= p.Take
	if p.Skip < 0 {
		p.Skip = 0
	}
}

// CanNext requires an aligned cursor and total >= skip+take.
// A total exactly equal to skip+take still enables Next.
func (p Pager) CanNext(total int64) bool {
	if p.Take <= 0 {
		return false
	}
	return p.Skip%p.Take == 0 && total >= int64(p.Skip+p.Take)
}

// Next advances one page when CanNext allows it and reports whether it moved.
func (p *Pager) Next(total int64) bool {
	if !p.CanNext(total) {
		return false
	}
	p.Skip += p.Take
	return true
}

func (p *Pager) Reset() {
	p.Skip = 0
}

// Range is the "from – to of total" label under the table.
func (p Pager) Range(total int64) string {
	if total <= 0 {
		return "0 – 0 of 0"
	}
	from := int64(p.Skip) + 1
	to := int64(p.Skip + p.Take)
	if to > total {
		to = total
	}
	if from > to {
		from = to
	}
	return fmt.Sprintf("%d – %d of %d", from, to, total)
}
