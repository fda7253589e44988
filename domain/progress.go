package domain

import "time"

// StatusCounts holds task counts per workflow state.
type StatusCounts struct {
	Todo  int `json:"todo"`
	Doing int `json:"doing"`
	Done  int `json:"done"`
}

// Total returns the number of tasks across all states.
func (c StatusCounts) Total() int { return c.Todo + c.Doing + c.Done }

func (c *StatusCounts) add(s Status, delta int) {
	switch s {
	case StatusTodo:
		c.Todo += delta
	case StatusDoing:
		c.Doing += delta
	case StatusDone:
		c.Done += delta
	}
}

// ProgressSnapshot is the derived completion aggregate for a board. It is a
// cache, not authoritative state; TTL hints how long it may be served before
// re-deriving from the source.
type ProgressSnapshot struct {
	Counts      StatusCounts            `json:"counts"`
	PerList     map[string]StatusCounts `json:"perList,omitempty"`
	PercentDone float64                 `json:"percentDone"`
	TTL         time.Duration           `json:"ttl,omitempty"`
}

// Clone returns a copy that shares no map state with the original.
func (p ProgressSnapshot) Clone() ProgressSnapshot {
	out := p
	if p.PerList != nil {
		out.PerList = make(map[string]StatusCounts, len(p.PerList))
		for k, v := range p.PerList {
			out.PerList[k] = v
		}
	}
	return out
}

// ApplyTransition moves one task from the prior status bucket to the new
// one, in both the overall and the per-list counts, and recomputes the
// completion percentage.
func (p *ProgressSnapshot) ApplyTransition(listID string, from, to Status) {
	if from == to {
		return
	}
	p.Counts.add(from, -1)
	p.Counts.add(to, 1)
	if p.PerList != nil {
		if c, ok := p.PerList[listID]; ok {
			c.add(from, -1)
			c.add(to, 1)
			p.PerList[listID] = c
		}
	}
	p.recompute()
}

func (p *ProgressSnapshot) recompute() {
	total := p.Counts.Total()
	if total == 0 {
		p.PercentDone = 0
		return
	}
	p.PercentDone = float64(p.Counts.Done) / float64(total) * 100
}

// ProgressFromBoard derives the aggregate from the current snapshot.
func ProgressFromBoard(b *Board) ProgressSnapshot {
	p := ProgressSnapshot{PerList: make(map[string]StatusCounts, len(b.Lists))}
	for i := range b.Lists {
		var c StatusCounts
		for j := range b.Lists[i].Tasks {
			s := b.Lists[i].Tasks[j].Status
			c.add(s, 1)
			p.Counts.add(s, 1)
		}
		p.PerList[b.Lists[i].ID] = c
	}
	p.recompute()
	return p
}
