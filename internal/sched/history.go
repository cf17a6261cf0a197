package sched

import "underlord/internal/defs"

// Per-kind history caps; oldest entries are dropped first.
const (
	missionHistoryCap = 50
	eventHistoryCap   = 20
	arcHistoryCap     = 10
)

type history struct {
	byKind map[defs.Kind][]HistoryRecord
}

func newHistory() *history {
	return &history{byKind: map[defs.Kind][]HistoryRecord{}}
}

func historyCap(kind defs.Kind) int {
	switch kind {
	case defs.KindMission:
		return missionHistoryCap
	case defs.KindWorldEvent:
		return eventHistoryCap
	case defs.KindStoryArc:
		return arcHistoryCap
	default:
		return eventHistoryCap
	}
}

func (h *history) append(rec HistoryRecord) {
	list := append(h.byKind[rec.Kind], rec)
	if limit := historyCap(rec.Kind); len(list) > limit {
		list = list[len(list)-limit:]
	}
	h.byKind[rec.Kind] = list
}

func (h *history) records(kind defs.Kind) []HistoryRecord {
	src := h.byKind[kind]
	out := make([]HistoryRecord, len(src))
	copy(out, src)
	return out
}

func (h *history) snapshot() map[defs.Kind][]HistoryRecord {
	out := make(map[defs.Kind][]HistoryRecord, len(h.byKind))
	for k := range h.byKind {
		out[k] = h.records(k)
	}
	return out
}

func (h *history) restore(m map[defs.Kind][]HistoryRecord) {
	h.byKind = map[defs.Kind][]HistoryRecord{}
	for _, recs := range m {
		for _, rec := range recs {
			h.append(rec)
		}
	}
}
