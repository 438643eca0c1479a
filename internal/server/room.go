package server

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"Sightline/internal/scene"
	"Sightline/internal/vision"
)

const (
	TickHz       = 20.0 // room loop rate
	PushHz       = 10.0 // per-client perception pushes
	ReapInterval = 60 * time.Second
)

// sceneGeometry is the room's mutable copy of host scene data. It implements
// scene.WallSource and scene.RegionSource for the engine.
type sceneGeometry struct {
	walls    []scene.Wall
	lights   []scene.LightSource
	darkness []scene.DarknessSource
}

func (g *sceneGeometry) Walls() []scene.Wall              { return g.walls }
func (g *sceneGeometry) Lights() []scene.LightSource      { return g.lights }
func (g *sceneGeometry) Darkness() []scene.DarknessSource { return g.darkness }

// Room owns one scene: its world, geometry, orchestrator, and connected host
// sessions. All mutation happens under Mu on the room loop.
type Room struct {
	ID    string
	Mu    sync.Mutex
	World *scene.World
	Geo   *sceneGeometry
	Orch  *vision.Orchestrator

	sessions map[string]*session
	store    scene.OverrideStore
	journal  *PassJournal

	lastPassChanged []scene.EntityID
	passes          uint64

	stop chan struct{}
}

func newRoom(id string, cfg vision.Config, elev scene.ElevationProvider, store scene.OverrideStore, journal *PassJournal) *Room {
	r := &Room{
		ID:       id,
		World:    scene.NewWorld(),
		Geo:      &sceneGeometry{},
		sessions: map[string]*session{},
		store:    store,
		journal:  journal,
		stop:     make(chan struct{}),
	}
	r.Orch = vision.NewOrchestrator(r.World, r.Geo, elev, r.Geo, r, cfg)
	go r.run()
	return r
}

// Refresh implements scene.RefreshSink: after each batch pass the room
// notifies every session, fire and forget.
func (r *Room) Refresh(changed []scene.EntityID) {
	r.lastPassChanged = changed
	r.passes++
	for _, s := range r.sessions {
		s.notifyRefresh(changed)
	}
	if r.journal != nil {
		ids := make([]string, 0, len(changed))
		for _, id := range changed {
			ids = append(ids, string(id))
		}
		if err := r.journal.Write(PassEntry{At: time.Now().UTC(), Room: r.ID, Changed: ids}); err != nil {
			log.Printf("room %s: journal write: %v", r.ID, err)
		}
	}
}

func (r *Room) run() {
	ticker := time.NewTicker(time.Duration(1000.0/TickHz) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Mu.Lock()
			r.Orch.Tick(time.Now())
			r.Mu.Unlock()
		}
	}
}

func (r *Room) addSession(s *session) {
	r.Mu.Lock()
	r.sessions[s.id] = s
	r.Mu.Unlock()
}

func (r *Room) removeSession(id string) {
	r.Mu.Lock()
	delete(r.sessions, id)
	r.Mu.Unlock()
}

func (r *Room) sessionCount() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return len(r.sessions)
}

type Hub struct {
	Rooms map[string]*Room
	Mu    sync.Mutex

	visionCfg vision.Config
	elev      scene.ElevationProvider
	store     scene.OverrideStore
	journal   *PassJournal
}

func NewHub(cfg vision.Config, elev scene.ElevationProvider, store scene.OverrideStore, journal *PassJournal) *Hub {
	return &Hub{
		Rooms:     map[string]*Room{},
		visionCfg: cfg,
		elev:      elev,
		store:     store,
		journal:   journal,
	}
}

func (h *Hub) GetRoom(id string) *Room {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	r, ok := h.Rooms[id]
	if !ok {
		r = newRoom(id, h.visionCfg, h.elev, h.store, h.journal)
		h.Rooms[id] = r
	}
	return r
}

// CleanupEmptyRooms stops and drops rooms with no connected sessions.
func (h *Hub) CleanupEmptyRooms() {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	for id, r := range h.Rooms {
		if r.sessionCount() == 0 {
			close(r.stop)
			delete(h.Rooms, id)
			log.Printf("reaped empty room %s", id)
		}
	}
}

func RandId(prefix string) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return prefix + "-" + string(b)
}
