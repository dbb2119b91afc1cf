package logic

// aggregateClick folds a confirmed release held for held into the pending
// click sequence. It is the only place a press is judged as a click.
func (in *Input) aggregateClick(g *Group, held, now Millis) {
	t := &in.timing

	if !t.validClick(held) {
		// Too short may end the sequence with a report; anything else drops it.
		if t.KeepAfterShortPress && held < t.ClickMin && in.clickCount > 0 {
			g.emit(in, EventClick)
		}
		in.clickCount = 0
		return
	}

	if in.clickCount > 0 && in.clickCount < t.MaxConsecutive &&
		elapsed(now, in.clickLast) < t.ClickMultiMax {
		in.clickCount++
	} else {
		// The previous sequence cannot be extended: saturated or the gap was too long.
		if in.clickCount > 0 {
			g.emit(in, EventClick)
		}
		in.clickCount = 1
	}
	in.clickLast = now
}
