package sharedptr

import "unsafe"

// reclaimCycle is the progress of an incremental cleanup in deamortized
// mode. A cycle owns a batch detached from the private list when it
// started; everything in the batch was retired before the scan began, so
// an announcement made after its slot was scanned can only belong to a
// reader whose validation must fail.
type reclaimCycle struct {
	active    bool
	cursor    *hazardSlot
	batch     Object
	protected map[unsafe.Pointer]struct{}
}

func (s *hazardSlot) pushRetired(o Object) {
	o.hazardBase().next = s.retired
	s.retired = o
	s.retiredLen++
	s.sinceCleanup++
}

// adoptPending moves up to limit queued domain retirements onto s's
// private list; a negative limit drains the queue.
func (d *Domain) adoptPending(s *hazardSlot, limit int) {
	for n := 0; limit < 0 || n < limit; n++ {
		o, err := d.pending.Dequeue()
		if err != nil {
			return
		}
		d.pendingCount.Add(-1)
		s.pushRetired(o)
	}
}

// collectProtected gathers every address currently announced anywhere
// in the registry into m.
func (d *Domain) collectProtected(m map[unsafe.Pointer]struct{}) {
	for x := &d.head; x != nil; x = x.next.Load() {
		if p := x.load(); p != nil {
			m[p] = struct{}{}
		}
	}
}

// cleanup is the amortized pass: snapshot all announcements, then
// reclaim every object of s's private list that is not among them.
// Survivors go back on the list for the next pass.
func (d *Domain) cleanup(s *hazardSlot) {
	s.sinceCleanup = 0
	list := s.retired
	if list == nil {
		return
	}
	s.retired, s.retiredLen = nil, 0

	if s.scratch == nil {
		s.scratch = make(map[unsafe.Pointer]struct{})
	}
	protected := s.scratch
	d.collectProtected(protected)

	var reclaimed uint64
	for o := list; o != nil; {
		b := o.hazardBase()
		next := b.next
		b.next = nil
		if _, ok := protected[objectAddr(o)]; ok {
			s.pushRetired(o)
		} else {
			o.Reclaim()
			reclaimed++
		}
		o = next
	}
	s.sinceCleanup = 0
	clear(protected)

	d.reclaimedTotal.Add(reclaimed)
	d.cleanups.Add(1)
}

// step advances s's incremental cleanup cycle by at most work units,
// where visiting one registry slot or checking one retired object costs
// one unit. A cycle starts once the private list holds at least as many
// objects as the registry has slots, which keeps the list from outgrowing
// the work spent on it.
func (d *Domain) step(s *hazardSlot, work int) {
	c := &s.cycle
	if !c.active {
		if s.retiredLen < int(d.slots.Load()) {
			return
		}
		c.active = true
		c.cursor = &d.head
		c.batch = s.retired
		s.retired, s.retiredLen = nil, 0
		if c.protected == nil {
			c.protected = make(map[unsafe.Pointer]struct{})
		}
	}

	for ; work > 0 && c.cursor != nil; work-- {
		if p := c.cursor.load(); p != nil {
			c.protected[p] = struct{}{}
		}
		c.cursor = c.cursor.next.Load()
	}

	var reclaimed uint64
	for ; work > 0 && c.batch != nil; work-- {
		o := c.batch
		b := o.hazardBase()
		c.batch = b.next
		b.next = nil
		if _, ok := c.protected[objectAddr(o)]; ok {
			s.pushRetired(o)
		} else {
			o.Reclaim()
			reclaimed++
		}
	}
	if reclaimed > 0 {
		d.reclaimedTotal.Add(reclaimed)
	}

	if c.cursor == nil && c.batch == nil {
		c.active = false
		clear(c.protected)
		s.sinceCleanup = 0
		d.cleanups.Add(1)
	}
}

// abortCycle returns the batch of an unfinished cycle to the private list
// so a full cleanup can take over.
func (d *Domain) abortCycle(s *hazardSlot) {
	c := &s.cycle
	if !c.active {
		return
	}
	for o := c.batch; o != nil; {
		b := o.hazardBase()
		next := b.next
		b.next = nil
		s.pushRetired(o)
		o = next
	}
	c.active = false
	c.cursor = nil
	c.batch = nil
	clear(c.protected)
}
