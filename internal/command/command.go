// Package command implements the ordered edit log emitted by a tagging run.
// Commands apply to the in-memory arena as they are appended, so later
// candidates observe earlier splits; the completed log is the hand-off
// artifact an external host replays against persistent storage.
package command

import (
	"fmt"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
)

// Command is a single atomic edit operation
type Command interface {
	// Apply performs the edit against the arena
	Apply(ds *arena.Dataset) error
	// Revert undoes a previously applied edit
	Revert(ds *arena.Dataset) error
	// String describes the edit for logs and change output
	String() string
}

// AddNode creates a new node
type AddNode struct {
	Node *arena.Node
}

func (c *AddNode) Apply(ds *arena.Dataset) error {
	ds.AddNode(c.Node)
	return nil
}

func (c *AddNode) Revert(ds *arena.Dataset) error {
	ds.RemoveNode(c.Node.ID)
	return nil
}

func (c *AddNode) String() string {
	return fmt.Sprintf("AddNode(%d @ %.7f,%.7f)", c.Node.ID, c.Node.Point.Lat(), c.Node.Point.Lon())
}

// ReplaceWayNodes swaps a way's node sequence for a new one
type ReplaceWayNodes struct {
	WayID    int64
	NewNodes []int64

	oldNodes []int64
}

func (c *ReplaceWayNodes) Apply(ds *arena.Dataset) error {
	w, err := ds.Way(c.WayID)
	if err != nil {
		return err
	}
	// Every referenced node must already exist: the AddNode for an inserted
	// node is required to precede its ReplaceWayNodes in the log.
	for _, id := range c.NewNodes {
		if _, err := ds.Node(id); err != nil {
			return fmt.Errorf("replace nodes of way %d: %w", c.WayID, err)
		}
	}
	c.oldNodes = w.Nodes
	w.Nodes = c.NewNodes
	return nil
}

func (c *ReplaceWayNodes) Revert(ds *arena.Dataset) error {
	w, err := ds.Way(c.WayID)
	if err != nil {
		return err
	}
	w.Nodes = c.oldNodes
	return nil
}

func (c *ReplaceWayNodes) String() string {
	return fmt.Sprintf("ReplaceWayNodes(%d, %d nodes)", c.WayID, len(c.NewNodes))
}

// SplitWay divides a way at an interior node into two child ways, retiring
// the parent id. Children inherit the parent's tags. Reverting removes the
// children and reinstalls the parent, so a logged split undoes cleanly.
type SplitWay struct {
	WayID     int64
	SplitNode int64

	parent   *arena.Way
	prefixID int64
	suffixID int64
}

func (c *SplitWay) Apply(ds *arena.Dataset) error {
	parent, err := ds.Way(c.WayID)
	if err != nil {
		return err
	}
	prefixID, suffixID, err := ds.SplitWay(c.WayID, c.SplitNode)
	if err != nil {
		return err
	}
	c.parent = parent
	c.prefixID = prefixID
	c.suffixID = suffixID
	return nil
}

func (c *SplitWay) Revert(ds *arena.Dataset) error {
	ds.RemoveWay(c.prefixID)
	ds.RemoveWay(c.suffixID)
	return ds.AddWay(c.parent)
}

func (c *SplitWay) String() string {
	return fmt.Sprintf("SplitWay(%d @ node %d)", c.WayID, c.SplitNode)
}

// PrefixID returns the id of the child ending at the split node
func (c *SplitWay) PrefixID() int64 { return c.prefixID }

// SuffixID returns the id of the child starting at the split node
func (c *SplitWay) SuffixID() int64 { return c.suffixID }

// SetTag sets a key/value tag on a way
type SetTag struct {
	WayID int64
	Key   string
	Value string

	oldValue string
	hadKey   bool
}

func (c *SetTag) Apply(ds *arena.Dataset) error {
	w, err := ds.Way(c.WayID)
	if err != nil {
		return err
	}
	c.oldValue, c.hadKey = w.Tags[c.Key]
	w.Tags[c.Key] = c.Value
	return nil
}

func (c *SetTag) Revert(ds *arena.Dataset) error {
	w, err := ds.Way(c.WayID)
	if err != nil {
		return err
	}
	if c.hadKey {
		w.Tags[c.Key] = c.oldValue
	} else {
		delete(w.Tags, c.Key)
	}
	return nil
}

func (c *SetTag) String() string {
	return fmt.Sprintf("SetTag(%d, %s=%s)", c.WayID, c.Key, c.Value)
}

// Log is the append-only ordered sequence of edits for one batch run
type Log struct {
	ds   *arena.Dataset
	cmds []Command
}

// NewLog creates a log over the given arena
func NewLog(ds *arena.Dataset) *Log {
	return &Log{ds: ds}
}

// Append applies a command to the arena and records it. A SetTag whose
// key/value the way already carries is a no-op and is not recorded.
func (l *Log) Append(cmd Command) error {
	if st, ok := cmd.(*SetTag); ok {
		w, err := l.ds.Way(st.WayID)
		if err != nil {
			return err
		}
		if w.HasTag(st.Key, st.Value) {
			return nil
		}
	}
	if err := cmd.Apply(l.ds); err != nil {
		return err
	}
	l.cmds = append(l.cmds, cmd)
	return nil
}

// Commands returns the recorded commands in append order
func (l *Log) Commands() []Command {
	return l.cmds
}

// Len returns the number of recorded commands
func (l *Log) Len() int {
	return len(l.cmds)
}

// Undo reverts the n most recent commands, newest first. n < 0 reverts all.
func (l *Log) Undo(n int) error {
	if n < 0 || n > len(l.cmds) {
		n = len(l.cmds)
	}
	for i := 0; i < n; i++ {
		cmd := l.cmds[len(l.cmds)-1]
		if err := cmd.Revert(l.ds); err != nil {
			return fmt.Errorf("undo %s: %w", cmd, err)
		}
		l.cmds = l.cmds[:len(l.cmds)-1]
	}
	return nil
}
