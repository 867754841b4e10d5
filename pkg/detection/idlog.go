package detection

// idLog is an insertion-ordered set that keeps only the most recent ids up to a limit.
type idLog struct {
	limit int
	order []string
	set   map[string]struct{}
}

func newIDLog(limit int, ids ...string) idLog {
	l := idLog{limit: limit, set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		l.add(id)
	}
	return l
}

// add appends id unless present, dropping the oldest entries beyond the limit.
func (l *idLog) add(id string) {
	if id == "" || l.contains(id) {
		return
	}
	l.order = append(l.order, id)
	l.set[id] = struct{}{}
	for len(l.order) > l.limit {
		delete(l.set, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *idLog) contains(id string) bool {
	_, ok := l.set[id]
	return ok
}

func (l *idLog) len() int { return len(l.order) }

// ids returns a copy, oldest first.
func (l *idLog) ids() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}
