package uci

import (
	"sync"

	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/obslog"
)

// EventKind identifies an outbound notification to the game/UI layer.
type EventKind int

const (
	EventEngineName EventKind = iota
	EventMoveAccepted
	EventAnalysisScore
	EventAnalysisBestLine
	EventAnalysisNodesPerSecond
	EventEngineLost
)

func (k EventKind) String() string {
	switch k {
	case EventEngineName:
		return "engine_name"
	case EventMoveAccepted:
		return "move_accepted"
	case EventAnalysisScore:
		return "analysis_score"
	case EventAnalysisBestLine:
		return "analysis_best_line"
	case EventAnalysisNodesPerSecond:
		return "analysis_nps"
	case EventEngineLost:
		return "engine_lost"
	default:
		return "unknown"
	}
}

// Event is one outbound notification. Fields are filled per kind: Name for
// EventEngineName, Move/Promotion for EventMoveAccepted, Score for
// EventAnalysisScore, Line for EventAnalysisBestLine, NodesPerSec for
// EventAnalysisNodesPerSecond.
type Event struct {
	Kind        EventKind
	Name        string
	Move        string
	Promotion   PieceType
	Score       string
	Line        []string
	NodesPerSec string
}

type EventCallback func(ev Event)

type eventCallbackEntry struct {
	id       int
	callback EventCallback
}

// notifier decouples the background dispatch path from event consumers:
// dispatch publishes into a buffered channel, a dedicated goroutine fans
// out to registered callbacks. Publishing never blocks; overflow drops the
// event with a warning.
type notifier struct {
	ch     chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup

	cbM    sync.RWMutex
	cbs    []eventCallbackEntry
	nextID int
}

func newNotifier(buffer int) *notifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &notifier{
		ch:     make(chan Event, buffer),
		stopCh: make(chan struct{}),
	}
}

func (n *notifier) start() {
	n.wg.Add(1)
	go n.run()
}

func (n *notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case ev := <-n.ch:
			n.deliver(ev)
		}
	}
}

func (n *notifier) deliver(ev Event) {
	n.cbM.RLock()
	callbacks := make([]eventCallbackEntry, len(n.cbs))
	copy(callbacks, n.cbs)
	n.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(ev)
		}
	}
}

func (n *notifier) publish(ev Event) {
	select {
	case n.ch <- ev:
	default:
		obslog.L().Warn("uci_event_dropped", zap.String("kind", ev.Kind.String()))
	}
}

func (n *notifier) subscribe(cb EventCallback) int {
	n.cbM.Lock()
	defer n.cbM.Unlock()
	n.nextID++
	n.cbs = append(n.cbs, eventCallbackEntry{id: n.nextID, callback: cb})
	return n.nextID
}

func (n *notifier) unsubscribe(id int) {
	n.cbM.Lock()
	defer n.cbM.Unlock()
	for i, cb := range n.cbs {
		if cb.id == id {
			n.cbs = append(n.cbs[:i], n.cbs[i+1:]...)
			break
		}
	}
}

func (n *notifier) stop() {
	close(n.stopCh)
	n.wg.Wait()
	// drain whatever was buffered so late events still reach consumers
	for {
		select {
		case ev := <-n.ch:
			n.deliver(ev)
		default:
			return
		}
	}
}
