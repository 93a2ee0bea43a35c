package kernel

// queueRef is an index into the queue pool.
type queueRef int16

const noQueue queueRef = -1

const queueMagic = 0x5143

// qcb is one message queue: a circular run of four-word slots in the shared
// arena plus an internal semaphore that counts receivable messages. The run
// holds capacity+1 slots so a full queue really stores capacity messages.
type qcb struct {
	magic uint16
	id    QueueID
	name  Name
	state objState
	flags QFlags

	capacity uint32
	start    uint32 // first arena slot, inclusive
	end      uint32 // last arena slot, inclusive
	nextin   uint32
	nextout  uint32

	sem semRef

	sends, urgents, receives, broadcasts uint32
}

func (k *Kernel) initQueues() {
	for i := range k.queues {
		k.queues[i] = qcb{sem: noSem}
	}
	k.arenaNext = 0
	k.arenaExts = 0
}

func (k *Kernel) nextQueueID() QueueID {
	k.nextQID++
	if k.nextQID == 0 {
		k.nextQID = 1
	}
	return QueueID(k.nextQID)
}

// arenaAlloc reserves a run of slots: first fit from freed extents, then
// the bump frontier.
func (k *Kernel) arenaAlloc(count uint32) (uint32, bool) {
	for i := 0; i < k.arenaExts; i++ {
		if k.arenaFree[i].count >= count {
			start := k.arenaFree[i].start
			k.arenaFree[i].start += count
			k.arenaFree[i].count -= count
			if k.arenaFree[i].count == 0 {
				k.arenaFree[i] = k.arenaFree[k.arenaExts-1]
				k.arenaExts--
			}
			return start, true
		}
	}
	if k.arenaNext+count > MaxBuffers {
		return 0, false
	}
	start := k.arenaNext
	k.arenaNext += count
	return start, true
}

// arenaRelease returns a run of slots for reuse.
func (k *Kernel) arenaRelease(start, count uint32) {
	if start+count == k.arenaNext {
		k.arenaNext = start
		return
	}
	if k.arenaExts < len(k.arenaFree) {
		k.arenaFree[k.arenaExts] = extent{start: start, count: count}
		k.arenaExts++
	}
}

func (k *Kernel) findQueue(id QueueID) (queueRef, Err) {
	for i := range k.queues {
		q := &k.queues[i]
		if q.id != id || q.state == objFree {
			continue
		}
		if q.state == objDeleted {
			return noQueue, ErrObjDel
		}
		if q.magic != queueMagic {
			return noQueue, ErrObjID
		}
		return queueRef(i), errNone
	}
	return noQueue, ErrObjID
}

func (q *qcb) advance(i uint32) uint32 {
	if i == q.end {
		return q.start
	}
	return i + 1
}

func (q *qcb) retreat(i uint32) uint32 {
	if i == q.start {
		return q.end
	}
	return i - 1
}

func (q *qcb) full() bool {
	return q.advance(q.nextin) == q.nextout
}

func (q *qcb) empty() bool {
	return q.nextin == q.nextout
}

func (q *qcb) messages() uint32 {
	if q.nextin >= q.nextout {
		return q.nextin - q.nextout
	}
	return q.nextin + (q.end - q.start + 1) - q.nextout
}

// qsemName builds the generated name of a queue's internal semaphore.
func qsemName(slot int) Name {
	return Name{'q', 's', byte('0' + slot/10), byte('0' + slot%10)}
}

// QueueCreate reserves a queue of the given message capacity in the buffer
// arena. QPrior releases waiting receivers in priority order.
func (k *Kernel) QueueCreate(name Name, capacity uint32, flags QFlags) (QueueID, error) {
	if capacity == 0 {
		return 0, ErrBadParam
	}

	k.enter()
	defer k.exit()

	slot := noQueue
	for i := range k.queues {
		if k.queues[i].state == objFree {
			slot = queueRef(i)
			break
		}
		if k.queues[i].state == objDeleted && slot == noQueue {
			slot = queueRef(i)
		}
	}
	if slot == noQueue {
		return 0, ErrNoQCB
	}

	start, ok := k.arenaAlloc(capacity + 1)
	if !ok {
		return 0, ErrNoMGB
	}

	var semFlags SemFlags
	if flags&QPrior != 0 {
		semFlags = SmPrior
	}
	sr, e := k.allocSem(qsemName(int(slot)), 0, semFlags, true)
	if e != errNone {
		k.arenaRelease(start, capacity+1)
		return 0, ErrNoQCB
	}

	k.queues[slot] = qcb{
		magic:    queueMagic,
		id:       k.nextQueueID(),
		name:     name,
		state:    objActive,
		flags:    flags,
		capacity: capacity,
		start:    start,
		end:      start + capacity,
		nextin:   start,
		nextout:  start,
		sem:      sr,
	}
	return k.queues[slot].id, nil
}

// QueueDelete releases a queue's arena run and unblocks every waiting
// receiver with a "queue deleted" failure.
func (k *Kernel) QueueDelete(id QueueID) error {
	k.enter()
	defer k.exit()

	r, e := k.findQueue(id)
	if e != errNone {
		return e
	}
	q := &k.queues[r]
	k.semKill(q.sem, ErrQKilled)
	k.arenaRelease(q.start, q.capacity+1)
	qid := q.id
	*q = qcb{state: objDeleted, id: qid, sem: noSem}
	k.dispatch()
	return nil
}

// QueueIdent resolves a name to a queue id.
func (k *Kernel) QueueIdent(name Name) (QueueID, error) {
	k.enter()
	defer k.exit()

	for i := range k.queues {
		q := &k.queues[i]
		if q.state == objActive && q.name == name {
			return q.id, nil
		}
	}
	return 0, ErrObjNF
}

// QueueSend copies a message to the send end. A full queue is an immediate
// error; senders never block.
func (k *Kernel) QueueSend(id QueueID, msg [4]uint32) error {
	k.enter()
	defer k.exit()

	r, e := k.findQueue(id)
	if e != errNone {
		return e
	}
	q := &k.queues[r]
	if q.full() {
		return ErrQFull
	}
	k.arena[q.nextin] = msg
	q.nextin = q.advance(q.nextin)
	q.sends++
	_ = k.semGive(q.sem)
	k.dispatch()
	return nil
}

// QueueUrgent copies a message to the receive end, so it is delivered ahead
// of everything already queued.
func (k *Kernel) QueueUrgent(id QueueID, msg [4]uint32) error {
	k.enter()
	defer k.exit()

	r, e := k.findQueue(id)
	if e != errNone {
		return e
	}
	q := &k.queues[r]
	if q.full() {
		return ErrQFull
	}
	q.nextout = q.retreat(q.nextout)
	k.arena[q.nextout] = msg
	q.urgents++
	_ = k.semGive(q.sem)
	k.dispatch()
	return nil
}

// QueueReceive takes the oldest message. An empty queue blocks the caller
// on the internal semaphore (honoring NoWait and the timeout); a sender's
// handoff guarantees the retried copy finds a message.
func (k *Kernel) QueueReceive(id QueueID, flags WaitFlags, timeout uint32) ([4]uint32, error) {
	k.enter()
	defer k.exit()

	r, e := k.findQueue(id)
	if e != errNone {
		return [4]uint32{}, e
	}
	q := &k.queues[r]
	qid := q.id
	e = k.semTake(q.sem, flags&NoWait != 0, timeout)
	switch e {
	case errNone:
	case ErrNoSem:
		return [4]uint32{}, ErrNoMsg
	case ErrSemKilled:
		return [4]uint32{}, ErrQKilled
	default:
		return [4]uint32{}, e
	}

	// The queue may have died between the handoff and our wakeup.
	if q.state != objActive || q.id != qid {
		return [4]uint32{}, ErrQKilled
	}

	if q.empty() {
		k.fatal("queue token without message")
	}
	msg := k.arena[q.nextout]
	q.nextout = q.advance(q.nextout)
	q.receives++
	return msg, nil
}

// QueueBroadcast delivers one message to every receiver currently waiting,
// bounded by the queue's capacity, and reports how many woke. With no
// waiters it behaves as QueueSend.
func (k *Kernel) QueueBroadcast(id QueueID, msg [4]uint32) (uint32, error) {
	k.enter()
	defer k.exit()

	r, e := k.findQueue(id)
	if e != errNone {
		return 0, e
	}
	q := &k.queues[r]
	q.broadcasts++

	if k.sems[q.sem].waiters == 0 {
		if q.full() {
			return 0, ErrQFull
		}
		k.arena[q.nextin] = msg
		q.nextin = q.advance(q.nextin)
		q.sends++
		_ = k.semGive(q.sem)
		k.dispatch()
		return 0, nil
	}

	var woke uint32
	for k.sems[q.sem].waiters > 0 && !q.full() {
		k.arena[q.nextin] = msg
		q.nextin = q.advance(q.nextin)
		_ = k.semGive(q.sem)
		woke++
	}
	k.dispatch()
	return woke, nil
}

// QueueVCreate is the variable-length queue compatibility stub.
func (k *Kernel) QueueVCreate(Name, uint32, uint32, QFlags) (QueueID, error) {
	return 0, ErrBadParam
}

// QueueVSend is the variable-length queue compatibility stub.
func (k *Kernel) QueueVSend(QueueID, []byte) error {
	return ErrBadParam
}

// QueueVReceive is the variable-length queue compatibility stub.
func (k *Kernel) QueueVReceive(QueueID, WaitFlags, uint32, []byte) (int, error) {
	return 0, ErrBadParam
}
