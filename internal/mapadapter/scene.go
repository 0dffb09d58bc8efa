package mapadapter

import (
	"sort"
	"sync"

	"fleetmap/core-go/internal/fleet"
)

type OpType string

const (
	OpCreate OpType = "CREATE"
	OpUpdate OpType = "UPDATE"
	OpRemove OpType = "REMOVE"
	OpCamera OpType = "CAMERA"
)

// Op is one journaled adapter call.
type Op struct {
	Seq       uint64     `json:"seq"`
	Type      OpType     `json:"type"`
	Key       Key        `json:"key,omitempty"`
	Primitive *Primitive `json:"primitive,omitempty"`
	Camera    *Camera    `json:"camera,omitempty"`
}

const DefaultJournalSize = 2048

type SceneOptions struct {
	JournalSize int
}

// Scene is an in-memory Adapter. Safe for concurrent use.
type Scene struct {
	mu         sync.RWMutex
	primitives map[Key]Primitive
	camera     *Camera
	seq        uint64
	journal    []Op
	limit      int
}

var _ Adapter = (*Scene)(nil)

func NewScene(opts SceneOptions) *Scene {
	limit := opts.JournalSize
	if limit <= 0 {
		limit = DefaultJournalSize
	}
	return &Scene{
		primitives: make(map[Key]Primitive),
		limit:      limit,
	}
}

func (s *Scene) CreatePrimitive(p Primitive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primitives[p.Key] = p
	s.record(Op{Type: OpCreate, Key: p.Key, Primitive: &p})
}

// UpdatePrimitive replaces position and style. Updating an unknown key is ignored, and an update
// that changes nothing is not journaled.
func (s *Scene) UpdatePrimitive(p Primitive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.primitives[p.Key]
	if !ok || samePrimitive(cur, p) {
		return
	}
	s.primitives[p.Key] = p
	s.record(Op{Type: OpUpdate, Key: p.Key, Primitive: &p})
}

func samePrimitive(a, b Primitive) bool {
	if a.Key != b.Key || a.Kind != b.Kind || a.EntityID != b.EntityID || a.Position != b.Position || a.Style != b.Style {
		return false
	}
	if a.Tooltip == nil || b.Tooltip == nil {
		return a.Tooltip == b.Tooltip
	}
	return *a.Tooltip == *b.Tooltip
}

func (s *Scene) RemovePrimitive(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.primitives[key]; !ok {
		return
	}
	delete(s.primitives, key)
	s.record(Op{Type: OpRemove, Key: key})
}

func (s *Scene) MoveCamera(center fleet.Coordinates, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam := Camera{Center: center, Zoom: zoom}
	s.camera = &cam
	s.record(Op{Type: OpCamera, Camera: &cam})
}

func (s *Scene) record(op Op) {
	s.seq++
	op.Seq = s.seq
	s.journal = append(s.journal, op)
	if over := len(s.journal) - s.limit; over > 0 {
		s.journal = append(s.journal[:0:0], s.journal[over:]...)
	}
}

// View is a point-in-time copy of the scene.
type View struct {
	Version    uint64      `json:"version"`
	Primitives []Primitive `json:"primitives"`
	Camera     *Camera     `json:"camera"`
}

// View returns primitives in draw order: ascending z-index, then key.
func (s *Scene) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Primitive, 0, len(s.primitives))
	for _, p := range s.primitives {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Style.ZIndex != out[j].Style.ZIndex {
			return out[i].Style.ZIndex < out[j].Style.ZIndex
		}
		return out[i].Key < out[j].Key
	})

	v := View{Version: s.seq, Primitives: out}
	if s.camera != nil {
		cam := *s.camera
		v.Camera = &cam
	}
	return v
}

// OpsSince returns journaled ops with Seq > since. complete is false when the journal no longer holds
// every op after since, in which case the caller should fetch a full View instead.
func (s *Scene) OpsSince(since uint64) (ops []Op, version uint64, complete bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version = s.seq
	if since >= s.seq {
		return []Op{}, version, true
	}
	complete = true
	if len(s.journal) > 0 && s.journal[0].Seq > since+1 {
		complete = false
	}
	idx := sort.Search(len(s.journal), func(i int) bool { return s.journal[i].Seq > since })
	ops = make([]Op, len(s.journal)-idx)
	copy(ops, s.journal[idx:])
	return ops, version, complete
}

func (s *Scene) Primitive(key Key) (Primitive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.primitives[key]
	return p, ok
}

func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primitives)
}
