package broadcast

// reconcileActiveFans rebuilds the queue from an authoritative membership
// snapshot. Ids present in both the previous order and the snapshot keep
// their relative order, ids missing from the snapshot are dropped, and
// newly-seen ids are appended in snapshot order. Dropping departed ids
// before appending keeps Order a permutation of the map keys even when an
// equal number of fans leave and join in one snapshot.
func reconcileActiveFans(prev ActiveFans, update []ActiveFan) ActiveFans {
	members := make(map[string]ActiveFan, len(update))
	ids := make([]string, 0, len(update))
	for _, fan := range update {
		if _, seen := members[fan.ID]; seen {
			continue
		}
		members[fan.ID] = fan
		ids = append(ids, fan.ID)
	}

	order := make([]string, 0, len(ids))
	for _, id := range prev.Order {
		if _, ok := members[id]; ok {
			order = append(order, id)
		}
	}
	retained := make(map[string]struct{}, len(order))
	for _, id := range order {
		retained[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := retained[id]; !ok {
			order = append(order, id)
		}
	}

	return ActiveFans{Map: members, Order: order}
}

// moveActiveFan removes the id at oldIndex and reinserts it at newIndex.
// Out-of-range indices leave the order untouched.
func moveActiveFan(order []string, oldIndex, newIndex int) []string {
	if oldIndex < 0 || oldIndex >= len(order) || newIndex < 0 || newIndex >= len(order) {
		return order
	}
	moved := order[oldIndex]
	next := make([]string, 0, len(order))
	next = append(next, order[:oldIndex]...)
	next = append(next, order[oldIndex+1:]...)
	next = append(next, "")
	copy(next[newIndex+1:], next[newIndex:])
	next[newIndex] = moved
	return next
}
