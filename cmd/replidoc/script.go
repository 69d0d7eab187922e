// Part of the replidoc CLI - this file defines the YAML edit-script format
// and its executor.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/replidoc/replidoc/replidoc"
	"github.com/replidoc/replidoc/types"
)

// Script is a YAML edit script: a peer ID and an ordered list of steps
// applied to a fresh document.
type Script struct {
	Peer  uint64 `yaml:"peer"`
	Steps []Step `yaml:"steps"`
}

// Step is one edit. Container names a root container, Type its kind, Op the
// operation; the remaining fields are operation arguments.
type Step struct {
	Container string      `yaml:"container"`
	Type      string      `yaml:"type"`
	Op        string      `yaml:"op"`
	Pos       int         `yaml:"pos"`
	Count     int         `yaml:"count"`
	Key       string      `yaml:"key"`
	Text      string      `yaml:"text"`
	Value     interface{} `yaml:"value"`
	Delta     float64     `yaml:"delta"`
	Node      string      `yaml:"node"`
	Parent    string      `yaml:"parent"`
}

// loadScript reads and parses a script file.
func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return &script, nil
}

// scriptRunner applies steps to a document, tracking tree nodes created by
// the script so later steps can refer to them by label.
type scriptRunner struct {
	doc   *replidoc.Doc
	nodes map[string]types.TreeID
}

func newScriptRunner(script *Script) *scriptRunner {
	var doc *replidoc.Doc
	if script.Peer != 0 {
		doc = replidoc.NewWithPeer(types.PeerID(script.Peer))
	} else {
		doc = replidoc.New()
	}
	return &scriptRunner{doc: doc, nodes: make(map[string]types.TreeID)}
}

// run applies every step and commits.
func (r *scriptRunner) run(script *Script) error {
	for i, step := range script.Steps {
		if err := r.apply(step); err != nil {
			return fmt.Errorf("step %d (%s %s on %q): %w", i, step.Op, step.Type, step.Container, err)
		}
		if verbose {
			fmt.Printf("applied step %d: %s %s on %q\n", i, step.Op, step.Type, step.Container)
		}
	}
	r.doc.Commit("script")
	return nil
}

func (r *scriptRunner) apply(step Step) error {
	switch step.Type {
	case "text":
		return r.applyText(step)
	case "list":
		return r.applyList(step)
	case "movable_list":
		return r.applyMovableList(step)
	case "map":
		return r.applyMap(step)
	case "tree":
		return r.applyTree(step)
	case "counter":
		return r.applyCounter(step)
	default:
		return fmt.Errorf("unknown container type %q", step.Type)
	}
}

func (r *scriptRunner) applyText(step Step) error {
	text := r.doc.GetText(step.Container)
	switch step.Op {
	case "insert":
		return text.Insert(step.Pos, step.Text)
	case "delete":
		return text.Delete(step.Pos, step.Count)
	case "update":
		return text.Update(step.Text)
	case "splice":
		_, err := text.Splice(step.Pos, step.Count, step.Text)
		return err
	default:
		return fmt.Errorf("unknown text op %q", step.Op)
	}
}

func (r *scriptRunner) applyList(step Step) error {
	list := r.doc.GetList(step.Container)
	switch step.Op {
	case "insert":
		return list.Insert(step.Pos, step.Value)
	case "push":
		return list.Push(step.Value)
	case "delete":
		count := step.Count
		if count == 0 {
			count = 1
		}
		return list.Delete(step.Pos, count)
	case "pop":
		_, _, err := list.Pop()
		return err
	case "clear":
		return list.Clear()
	default:
		return fmt.Errorf("unknown list op %q", step.Op)
	}
}

func (r *scriptRunner) applyMovableList(step Step) error {
	list := r.doc.GetMovableList(step.Container)
	switch step.Op {
	case "insert":
		return list.Insert(step.Pos, step.Value)
	case "push":
		return list.Push(step.Value)
	case "set":
		return list.Set(step.Pos, step.Value)
	case "move":
		// Pos is the source, Count reused as the destination.
		return list.Mov(step.Pos, step.Count)
	case "delete":
		count := step.Count
		if count == 0 {
			count = 1
		}
		return list.Delete(step.Pos, count)
	default:
		return fmt.Errorf("unknown movable list op %q", step.Op)
	}
}

func (r *scriptRunner) applyMap(step Step) error {
	m := r.doc.GetMap(step.Container)
	switch step.Op {
	case "insert":
		return m.Insert(step.Key, step.Value)
	case "delete":
		return m.Delete(step.Key)
	case "clear":
		return m.Clear()
	default:
		return fmt.Errorf("unknown map op %q", step.Op)
	}
}

func (r *scriptRunner) applyTree(step Step) error {
	tree := r.doc.GetTree(step.Container)
	switch step.Op {
	case "create":
		parent, err := r.parentOf(step.Parent)
		if err != nil {
			return err
		}
		id, err := tree.Create(parent)
		if err != nil {
			return err
		}
		if step.Node != "" {
			r.nodes[step.Node] = id
		}
		return nil
	case "move":
		target, err := r.nodeOf(step.Node)
		if err != nil {
			return err
		}
		parent, err := r.parentOf(step.Parent)
		if err != nil {
			return err
		}
		return tree.Move(target, parent)
	case "delete":
		target, err := r.nodeOf(step.Node)
		if err != nil {
			return err
		}
		return tree.Delete(target)
	case "meta":
		target, err := r.nodeOf(step.Node)
		if err != nil {
			return err
		}
		meta, err := tree.GetMeta(target)
		if err != nil {
			return err
		}
		return meta.Insert(step.Key, step.Value)
	default:
		return fmt.Errorf("unknown tree op %q", step.Op)
	}
}

func (r *scriptRunner) applyCounter(step Step) error {
	counter := r.doc.GetCounter(step.Container)
	switch step.Op {
	case "increment":
		return counter.Increment(step.Delta)
	case "decrement":
		return counter.Decrement(step.Delta)
	default:
		return fmt.Errorf("unknown counter op %q", step.Op)
	}
}

func (r *scriptRunner) parentOf(label string) (types.TreeParentID, error) {
	if label == "" || label == "root" {
		return types.RootParent(), nil
	}
	node, err := r.nodeOf(label)
	if err != nil {
		return types.TreeParentID{}, err
	}
	return types.NodeParent(node), nil
}

func (r *scriptRunner) nodeOf(label string) (types.TreeID, error) {
	if id, ok := r.nodes[label]; ok {
		return id, nil
	}
	return types.TreeID{}, fmt.Errorf("unknown node label %q", label)
}
