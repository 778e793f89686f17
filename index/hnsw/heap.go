package hnsw

// distItem pairs a node position with its distance to the current query.
type distItem struct {
	pos  uint32
	dist float64
}

// distHeap is a small min-heap by distance with a linear-scan worst-dropper;
// the beam widths in play here keep both operations cheap.
type distHeap struct {
	items []distItem
}

func (h *distHeap) len() int { return len(h.items) }

func (h *distHeap) push(item distItem) {
	h.items = append(h.items, item)
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *distHeap) pop() distItem {
	item := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	h.siftDown(0)
	return item
}

// worst returns the largest distance currently held.
func (h *distHeap) worst() float64 {
	w := h.items[0].dist
	for _, it := range h.items[1:] {
		if it.dist > w {
			w = it.dist
		}
	}
	return w
}

// dropWorst removes the item with the largest distance.
func (h *distHeap) dropWorst() {
	if len(h.items) == 0 {
		return
	}
	worst := 0
	for i := 1; i < len(h.items); i++ {
		if h.items[i].dist > h.items[worst].dist {
			worst = i
		}
	}
	last := len(h.items) - 1
	h.items[worst] = h.items[last]
	h.items = h.items[:last]
	if worst < len(h.items) {
		h.siftDown(worst)
		h.siftUp(worst)
	}
}

func (h *distHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *distHeap) siftDown(i int) {
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i
		if left < len(h.items) && h.items[left].dist < h.items[smallest].dist {
			smallest = left
		}
		if right < len(h.items) && h.items[right].dist < h.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
